// Package gemini implements model.Model on top of the Google Gen AI SDK
// (Gemini API backend).
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"

	"google.golang.org/genai"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/model"
)

// Models is the subset of *genai.Models used by the adapter.
type Models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content,
		config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content,
		config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

// Options configures the Gemini adapter.
type Options struct {
	Model           string
	Temperature     float64
	MaxOutputTokens int32
	// APIKey overrides GOOGLE_API_KEY / GEMINI_API_KEY when set.
	APIKey  string
	BaseURL string
}

// Model wraps the Gemini generateContent API behind model.Model.
type Model struct {
	models Models
	opts   Options
}

// NewModel creates a client for the Gemini API backend.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	return &Model{models: client.Models, opts: opts}, nil
}

// NewModelFromModels creates a model from an existing Models implementation.
func NewModelFromModels(models Models, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{models: models, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       "gemini-1.5-flash",
		Temperature: 0.7,
	}
}

func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		contents := convertContents(req.Contents)
		config := m.buildConfig(req)

		if !req.Stream {
			rsp, err := m.models.GenerateContent(ctx, m.opts.Model, contents, config)
			if err != nil {
				errCh <- fmt.Errorf("gemini api error: %w", err)
				return
			}
			resp, err := convertResponse(rsp)
			if err != nil {
				errCh <- err
				return
			}
			out <- resp
			return
		}

		var (
			text  strings.Builder
			calls []core.Part
			last  model.Response
		)

		for rsp, err := range m.models.GenerateContentStream(ctx, m.opts.Model, contents, config) {
			if err != nil {
				errCh <- fmt.Errorf("gemini streaming error: %w", err)
				return
			}

			chunk, err := convertResponse(rsp)
			if err != nil {
				errCh <- err
				return
			}

			for _, p := range chunk.Content.Parts {
				switch part := p.(type) {
				case core.TextPart:
					text.WriteString(part.Text)
					out <- model.Response{
						ID:      chunk.ID,
						Partial: true,
						Content: core.NewTextContent(core.RoleAssistant, part.Text),
					}
				case core.FunctionCallPart:
					calls = append(calls, part)
				}
			}

			last = chunk
		}

		parts := make([]core.Part, 0, len(calls)+1)
		if text.Len() > 0 {
			parts = append(parts, core.TextPart{Text: text.String()})
		}
		parts = append(parts, calls...)

		last.Partial = false
		last.Content = core.Content{Role: core.RoleAssistant, Parts: parts}
		if len(calls) > 0 {
			last.FinishReason = "tool_calls"
		}
		out <- last
	}()

	return out, errCh
}

func (m *Model) buildConfig(req model.Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(m.opts.Temperature)),
	}
	if m.opts.MaxOutputTokens > 0 {
		config.MaxOutputTokens = m.opts.MaxOutputTokens
	}
	if sys := model.SystemPrompt(req); sys != "" {
		config.SystemInstruction = genai.NewContentFromText(sys, genai.RoleUser)
	}

	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:                 t.Function.Name,
				Description:          t.Function.Description,
				ParametersJsonSchema: t.Function.Parameters,
			})
		}
		mode := genai.FunctionCallingConfigModeAuto
		if req.ToolChoice == model.ToolChoiceNone {
			mode = genai.FunctionCallingConfigModeNone
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
		config.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: mode},
		}
	}

	return config
}

// convertContents maps history onto Gemini's user/model turns. Tool results
// are sent as function responses in a user turn.
func convertContents(contents []core.Content) []*genai.Content {
	var result []*genai.Content

	for _, c := range contents {
		var (
			role  genai.Role = genai.RoleUser
			parts []*genai.Part
		)

		switch c.Role {
		case core.RoleSystem:
			continue
		case core.RoleAssistant:
			role = genai.RoleModel
		}

		for _, p := range c.Parts {
			switch part := p.(type) {
			case core.TextPart:
				if part.Text != "" {
					parts = append(parts, genai.NewPartFromText(part.Text))
				}
			case core.FunctionCallPart:
				args := callArgs(part.FunctionCall.Arguments)
				fp := genai.NewPartFromFunctionCall(part.FunctionCall.Name, args)
				fp.FunctionCall.ID = part.FunctionCall.ID
				parts = append(parts, fp)
			case core.FunctionResponsePart:
				key := "output"
				if part.FunctionResponse.Error != "" {
					key = "error"
				}
				fp := genai.NewPartFromFunctionResponse(part.FunctionResponse.Name, map[string]any{
					key: model.ResponseText(part.FunctionResponse),
				})
				fp.FunctionResponse.ID = part.FunctionResponse.ID
				parts = append(parts, fp)
			}
		}

		if len(parts) == 0 {
			continue
		}

		if n := len(result); n > 0 && result[n-1].Role == string(role) {
			result[n-1].Parts = append(result[n-1].Parts, parts...)
			continue
		}
		result = append(result, genai.NewContentFromParts(parts, role))
	}

	return result
}

func convertResponse(rsp *genai.GenerateContentResponse) (model.Response, error) {
	if rsp == nil || len(rsp.Candidates) == 0 {
		if rsp != nil && rsp.PromptFeedback != nil && rsp.PromptFeedback.BlockReason != "" {
			return model.Response{}, fmt.Errorf("gemini api error: prompt blocked: %s", rsp.PromptFeedback.BlockReason)
		}
		return model.Response{}, errors.New("gemini api error: no candidates returned")
	}

	cand := rsp.Candidates[0]

	var parts []core.Part
	if cand.Content != nil {
		for _, p := range cand.Content.Parts {
			if p == nil || p.Thought {
				continue
			}
			if p.Text != "" {
				parts = append(parts, core.TextPart{Text: p.Text})
			}
			if p.FunctionCall != nil {
				args, _ := json.Marshal(p.FunctionCall.Args)
				id := p.FunctionCall.ID
				if id == "" {
					id = core.NewID()
				}
				parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
					ID:        id,
					Name:      p.FunctionCall.Name,
					Arguments: string(args),
				}})
			}
		}
	}

	finishReason := "stop"
	switch {
	case hasFunctionCall(parts):
		finishReason = "tool_calls"
	case cand.FinishReason == genai.FinishReasonMaxTokens:
		finishReason = "length"
	case cand.FinishReason != "" && cand.FinishReason != genai.FinishReasonStop:
		finishReason = strings.ToLower(string(cand.FinishReason))
	}

	resp := model.Response{
		ID:           rsp.ResponseID,
		Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
		FinishReason: finishReason,
	}

	if u := rsp.UsageMetadata; u != nil {
		resp.Usage = &model.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}

	return resp, nil
}

func hasFunctionCall(parts []core.Part) bool {
	for _, p := range parts {
		if _, ok := p.(core.FunctionCallPart); ok {
			return true
		}
	}
	return false
}

// Info returns metadata describing this model.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "gemini",
		SupportsTools: true,
	}
}

// RawArgumentsKey holds call arguments that are not a JSON object, so the
// model still sees what it sent.
const RawArgumentsKey = "raw_arguments"

func callArgs(raw string) map[string]any {
	args := map[string]any{}
	if raw == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]any{RawArgumentsKey: raw}
	}
	return args
}
