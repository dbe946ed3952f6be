package search

import (
	"context"
	"errors"
	"net/http"
	"os"
)

// ErrMissingAPIKey is returned when a provider has no credential.
var ErrMissingAPIKey = errors.New("missing api key")

const serperBaseURL = "https://google.serper.dev"

// SerperOptions configure the Serper (google.serper.dev) provider.
type SerperOptions struct {
	// APIKey defaults to SERPER_API_KEY.
	APIKey     string
	BaseURL    string
	Country    string
	Locale     string
	HTTPClient *http.Client
}

// Serper searches Google through serper.dev.
type Serper struct {
	opts SerperOptions
}

func NewSerper(optFns ...func(o *SerperOptions)) *Serper {
	opts := SerperOptions{
		APIKey:     os.Getenv("SERPER_API_KEY"),
		BaseURL:    serperBaseURL,
		HTTPClient: http.DefaultClient,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Serper{opts: opts}
}

func (s *Serper) Name() string { return "serper" }

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num,omitempty"`
	GL  string `json:"gl,omitempty"`
	HL  string `json:"hl,omitempty"`
}

type serperResponse struct {
	KnowledgeGraph *struct {
		Title       string `json:"title"`
		Type        string `json:"type"`
		Description string `json:"description"`
		Website     string `json:"website"`
	} `json:"knowledgeGraph"`
	Organic []struct {
		Title    string `json:"title"`
		Link     string `json:"link"`
		Snippet  string `json:"snippet"`
		Position int    `json:"position"`
	} `json:"organic"`
}

func (s *Serper) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if s.opts.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	var resp serperResponse
	if err := postJSON(ctx, s.opts.HTTPClient, s.opts.BaseURL+"/search",
		map[string]string{"X-API-KEY": s.opts.APIKey},
		serperRequest{Q: query, Num: maxResults, GL: s.opts.Country, HL: s.opts.Locale},
		&resp,
	); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(resp.Organic)+1)
	if kg := resp.KnowledgeGraph; kg != nil && kg.Title != "" {
		results = append(results, Result{Title: kg.Title, URL: kg.Website, Snippet: kg.Description})
	}
	for _, o := range resp.Organic {
		if maxResults > 0 && len(results) >= maxResults {
			break
		}
		results = append(results, Result{Title: o.Title, URL: o.Link, Snippet: o.Snippet})
	}

	return results, nil
}

// NewSerperTool returns the internet search tool used by crew agents.
func NewSerperTool(optFns ...func(o *SerperOptions)) *Tool {
	return NewTool(NewSerper(optFns...), func(o *Options) {
		o.Name = "search_internet"
		o.Description = "A tool that can be used to search the internet with a search_query. " +
			"Returns titles, links and snippets of the top Google results."
		o.QueryParam = "search_query"
		o.MaxResults = 10
	})
}
