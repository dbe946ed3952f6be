package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcrew/internal/testutil"
	"github.com/hupe1980/agentcrew/tool"
)

func TestSerper_Search(t *testing.T) {
	var got serperRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "serper-key", r.Header.Get("X-API-KEY"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"knowledgeGraph":{"title":"Moscone Center","description":"Convention center","website":"https://moscone.com"},
			"organic":[
				{"title":"Top venues","link":"https://a.example","snippet":"A list","position":1},
				{"title":"More venues","link":"https://b.example","snippet":"B list","position":2}
			]
		}`)
	}))
	defer srv.Close()

	s := NewSerper(func(o *SerperOptions) {
		o.APIKey = "serper-key"
		o.BaseURL = srv.URL
	})

	results, err := s.Search(context.Background(), "conference venues San Francisco", 2)
	require.NoError(t, err)

	assert.Equal(t, "conference venues San Francisco", got.Q)
	assert.Equal(t, 2, got.Num)

	require.Len(t, results, 2)
	assert.Equal(t, "Moscone Center", results[0].Title)
	assert.Equal(t, "https://a.example", results[1].URL)
}

func TestSerper_Errors(t *testing.T) {
	_, err := NewSerper(func(o *SerperOptions) { o.APIKey = "" }).Search(context.Background(), "q", 1)
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Unauthorized", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err = NewSerper(func(o *SerperOptions) {
		o.APIKey = "bad"
		o.BaseURL = srv.URL
	}).Search(context.Background(), "q", 1)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	assert.Contains(t, statusErr.Error(), "Unauthorized")
}

func TestTavily_Search(t *testing.T) {
	var got tavilyRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tvly-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"results":[{"title":"Educative","url":"https://www.educative.io","content":"Interactive courses for developers","score":0.9}]}`)
	}))
	defer srv.Close()

	tv := NewTavily(func(o *TavilyOptions) {
		o.APIKey = "tvly-key"
		o.BaseURL = srv.URL
	})

	results, err := tv.Search(context.Background(), "What is Educative?", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, got.MaxResults)
	assert.Equal(t, "basic", got.SearchDepth)

	require.Len(t, results, 1)
	assert.Equal(t, "Interactive courses for developers", results[0].Content)
}

type stubProvider struct {
	results []Result
	err     error
	query   string
	max     int
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Search(_ context.Context, query string, maxResults int) ([]Result, error) {
	s.query, s.max = query, maxResults
	return s.results, s.err
}

func TestTool_Call(t *testing.T) {
	h := testutil.NewHarness(t, "Venue Finder")

	p := &stubProvider{results: []Result{{Title: "Venue", URL: "https://v.example", Snippet: "Great hall"}}}
	st := NewTool(p, func(o *Options) {
		o.Name = "search_internet"
		o.QueryParam = "search_query"
		o.MaxResults = 5
	})

	assert.Equal(t, []string{"search_query"}, st.Parameters()["required"])

	out, err := st.Call(h.ToolContext("fc1"), map[string]any{"search_query": "venues"})
	require.NoError(t, err)
	assert.Equal(t, "venues", p.query)
	assert.Equal(t, 5, p.max)
	assert.Contains(t, out, "Title: Venue\nLink: https://v.example\nSnippet: Great hall\n")

	_, err = st.Call(h.ToolContext("fc2"), map[string]any{})
	var toolErr *tool.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, tool.CodeValidation, toolErr.Code)

	p.err = errors.New("boom")
	_, err = st.Call(h.ToolContext("fc3"), map[string]any{"search_query": "venues"})
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, tool.CodeExecution, toolErr.Code)
}

func TestTavilyTool_Format(t *testing.T) {
	tt := NewTavilyTool(1, func(o *TavilyOptions) { o.APIKey = "k" })
	assert.Equal(t, "tavily_search_results_json", tt.Name())

	out := FormatURLContent("q", []Result{{URL: "https://u", Content: "c"}, {URL: "https://s", Snippet: "s"}})
	assert.Equal(t, []map[string]string{
		{"url": "https://u", "content": "c"},
		{"url": "https://s", "content": "s"},
	}, out)

	assert.Equal(t, `No results found for "q".`, FormatMarkdown("q", nil))
}
