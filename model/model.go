package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/agentcrew/core"
)

// ToolDefinition describes a callable tool to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Request is a provider-neutral generation request. Contents may start with
// a system content carrying the instructions.
type Request struct {
	Instructions string           `json:"instructions"`
	Contents     []core.Content   `json:"contents"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	// ToolChoice restricts tool use. Empty means the model decides.
	ToolChoice ToolChoice `json:"tool_choice,omitempty"`
	Stream     bool       `json:"stream,omitempty"`
}

// ToolChoice controls whether the model may call the declared tools.
type ToolChoice string

const (
	ToolChoiceAuto ToolChoice = "auto"
	// ToolChoiceNone keeps the tool definitions in the request, so history
	// with tool calls stays valid, but asks for a text answer.
	ToolChoiceNone ToolChoice = "none"
)

// TokenUsage reports token counts for a single call.
type TokenUsage = core.Usage

type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", ...
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "gemini", "mock"
	SupportsTools bool   `json:"supports_tools"`
}

// Model generates responses. Implementations stream zero or more partial
// responses followed by exactly one non-partial response, or report a
// failure on the error channel. Both channels are closed when done.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	Info() Info
}

// MockModel is a scripted Model for tests. Queued responses are returned in
// order; once the queue is empty it falls back to prompt lookups and finally
// to "Mock response to: <last text>".
type MockModel struct {
	info      Info
	mu        sync.Mutex
	responses map[string]string
	queue     []mockStep
	requests  []Request
}

type mockStep struct {
	resp Response
	err  error
}

func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: provider, SupportsTools: true},
		responses: make(map[string]string),
	}
}

// AddResponse maps an exact last-message text to a reply.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// QueueText enqueues a final text answer.
func (m *MockModel) QueueText(text string) *MockModel {
	return m.QueueResponse(Response{
		Content:      core.NewTextContent(core.RoleAssistant, text),
		FinishReason: "stop",
	})
}

// QueueToolCall enqueues a response requesting one tool call.
func (m *MockModel) QueueToolCall(id, name, args string) *MockModel {
	return m.QueueResponse(Response{
		Content: core.Content{Role: core.RoleAssistant, Parts: []core.Part{
			core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: id, Name: name, Arguments: args}},
		}},
		FinishReason: "tool_calls",
	})
}

func (m *MockModel) QueueResponse(resp Response) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, mockStep{resp: resp})
	return m
}

// QueueError makes the next call fail with err.
func (m *MockModel) QueueError(err error) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, mockStep{err: err})
	return m
}

// Requests returns the requests received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

func (m *MockModel) next(req Request) (mockStep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	if len(m.queue) > 0 {
		step := m.queue[0]
		m.queue = m.queue[1:]
		return step, nil
	}

	if len(req.Contents) == 0 {
		return mockStep{}, fmt.Errorf("no contents provided")
	}

	inputText := req.Contents[len(req.Contents)-1].Text()
	full := m.responses[inputText]
	if full == "" {
		full = fmt.Sprintf("Mock response to: %s", inputText)
	}

	return mockStep{resp: Response{
		Content:      core.NewTextContent(core.RoleAssistant, full),
		FinishReason: "stop",
	}}, nil
}

func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		step, err := m.next(req)
		if err == nil {
			err = step.err
		}
		if err != nil {
			errCh <- err
			return
		}

		if req.Stream {
			for _, r := range step.resp.Content.Text() {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Content: core.NewTextContent(core.RoleAssistant, string(r))}:
				}
			}
		}

		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- step.resp:
		}
	}()

	return respCh, errCh
}

func (m *MockModel) Info() Info { return m.info }

// SystemPrompt merges Instructions with the text of any system contents.
func SystemPrompt(req Request) string {
	var parts []string
	if req.Instructions != "" {
		parts = append(parts, req.Instructions)
	}
	for _, c := range req.Contents {
		if c.Role == core.RoleSystem {
			if t := c.Text(); t != "" {
				parts = append(parts, t)
			}
		}
	}
	return strings.Join(parts, "\n\n")
}

// ResponseText renders a tool result as the text sent back to a provider.
func ResponseText(fr core.FunctionResponse) string {
	if fr.Error != "" {
		return "Error: " + fr.Error
	}
	switch v := fr.Response.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}
