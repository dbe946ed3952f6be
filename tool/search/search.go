package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/tool"
)

// Provider is a web search backend.
type Provider interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
	Name() string
}

// Result is a single search hit.
type Result struct {
	Title   string  `json:"title,omitempty"`
	URL     string  `json:"url"`
	Snippet string  `json:"snippet,omitempty"`
	Content string  `json:"content,omitempty"`
	Score   float64 `json:"score,omitempty"`
}

// Formatter renders results into the value returned to the model.
type Formatter func(query string, results []Result) any

// Options configure a search Tool.
type Options struct {
	Name        string
	Description string
	// QueryParam is the argument name the model fills with the query.
	QueryParam string
	MaxResults int
	Timeout    time.Duration
	Format     Formatter
}

// Tool exposes a Provider as a tool.Tool.
type Tool struct {
	provider Provider
	opts     Options
}

// NewTool wraps provider. Unset options default to a generic web_search
// tool returning markdown.
func NewTool(provider Provider, optFns ...func(o *Options)) *Tool {
	opts := Options{
		Name:        "web_search",
		Description: "Search the web for information. Returns relevant results with titles, links and snippets.",
		QueryParam:  "query",
		MaxResults:  10,
		Timeout:     30 * time.Second,
		Format:      FormatMarkdown,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Tool{provider: provider, opts: opts}
}

func (t *Tool) Name() string { return t.opts.Name }

func (t *Tool) Description() string { return t.opts.Description }

func (t *Tool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			t.opts.QueryParam: map[string]any{
				"type":        "string",
				"description": "Mandatory search query you want to use to search the internet",
			},
		},
		"required": []string{t.opts.QueryParam},
	}
}

func (t *Tool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	query, ok := tool.StringArg(args, t.opts.QueryParam)
	if !ok {
		return nil, tool.NewToolError(t.opts.Name, t.opts.QueryParam+" is required", tool.CodeValidation)
	}

	ctx := toolCtx.Context()
	if t.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.Timeout)
		defer cancel()
	}

	logger := logging.With(toolCtx.Logger(), "provider", t.provider.Name())

	start := time.Now()
	logger.Info("search.start", "query", query, "max_results", t.opts.MaxResults)

	results, err := t.provider.Search(ctx, query, t.opts.MaxResults)
	if err != nil {
		logger.Error("search.failed", "query", query, "error", err.Error())
		return nil, tool.NewToolError(t.opts.Name, err.Error(), tool.CodeExecution)
	}

	logger.Info("search.done", "results", len(results), "duration_ms", time.Since(start).Milliseconds())

	return t.opts.Format(query, results), nil
}

// FormatMarkdown renders results as a readable list.
func FormatMarkdown(query string, results []Result) any {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for %q.", query)
	}

	var sb strings.Builder
	sb.WriteString("\nSearch results:\n")
	for _, r := range results {
		if r.Title != "" {
			fmt.Fprintf(&sb, "Title: %s\n", r.Title)
		}
		fmt.Fprintf(&sb, "Link: %s\n", r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&sb, "Snippet: %s\n", r.Snippet)
		}
		if r.Content != "" && r.Content != r.Snippet {
			fmt.Fprintf(&sb, "Content: %s\n", r.Content)
		}
		sb.WriteString("---\n")
	}
	return sb.String()
}

// FormatURLContent renders results as [{url, content}] objects.
func FormatURLContent(_ string, results []Result) any {
	out := make([]map[string]string, 0, len(results))
	for _, r := range results {
		content := r.Content
		if content == "" {
			content = r.Snippet
		}
		out = append(out, map[string]string{"url": r.URL, "content": content})
	}
	return out
}

// postJSON sends body as JSON and decodes a JSON reply into out.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(payload)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// StatusError reports a non-2xx reply from a search API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("search api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("search api returned status %d: %s", e.StatusCode, e.Body)
}
