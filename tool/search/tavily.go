package search

import (
	"context"
	"net/http"
	"os"
)

const tavilyBaseURL = "https://api.tavily.com"

// TavilyOptions configure the Tavily provider.
type TavilyOptions struct {
	// APIKey defaults to TAVILY_API_KEY.
	APIKey string
	// SearchDepth is "basic" or "advanced".
	SearchDepth string
	BaseURL     string
	HTTPClient  *http.Client
}

// Tavily searches through api.tavily.com.
type Tavily struct {
	opts TavilyOptions
}

func NewTavily(optFns ...func(o *TavilyOptions)) *Tavily {
	opts := TavilyOptions{
		APIKey:      os.Getenv("TAVILY_API_KEY"),
		SearchDepth: "basic",
		BaseURL:     tavilyBaseURL,
		HTTPClient:  http.DefaultClient,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Tavily{opts: opts}
}

func (t *Tavily) Name() string { return "tavily" }

type tavilyRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results,omitempty"`
	SearchDepth string `json:"search_depth,omitempty"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

func (t *Tavily) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if t.opts.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	var resp tavilyResponse
	if err := postJSON(ctx, t.opts.HTTPClient, t.opts.BaseURL+"/search",
		map[string]string{"Authorization": "Bearer " + t.opts.APIKey},
		tavilyRequest{APIKey: t.opts.APIKey, Query: query, MaxResults: maxResults, SearchDepth: t.opts.SearchDepth},
		&resp,
	); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, Result{Title: r.Title, URL: r.URL, Content: r.Content, Score: r.Score})
	}

	return results, nil
}

// NewTavilyTool returns a search tool yielding [{url, content}] results.
func NewTavilyTool(maxResults int, optFns ...func(o *TavilyOptions)) *Tool {
	return NewTool(NewTavily(optFns...), func(o *Options) {
		o.Name = "tavily_search_results_json"
		o.Description = "A search engine optimized for comprehensive, accurate, and trusted results. " +
			"Useful for when you need to answer questions about current events. Input should be a search query."
		o.QueryParam = "query"
		o.MaxResults = maxResults
		o.Format = FormatURLContent
	})
}
