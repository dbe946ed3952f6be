// Package scrape provides a tool that fetches a web page and returns its
// main content as markdown.
package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/tool"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/96.0.4664.110 Safari/537.36"
	defaultAccept    = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
)

var blankLines = regexp.MustCompile(`\r?\n{2,}`)

// Options configure the scrape tool.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	// MaxBodyBytes limits how much of the response is read.
	MaxBodyBytes int64
	// MaxContentLength truncates the returned markdown (runes). Zero disables.
	MaxContentLength int
	// SaveArtifacts stores every scraped page as a markdown artifact of the
	// session, see ArtifactID.
	SaveArtifacts bool
	HTTPClient    *http.Client
}

// Metadata describes a scraped page.
type Metadata struct {
	Title       string `json:"title,omitempty"`
	Author      string `json:"author,omitempty"`
	Description string `json:"description,omitempty"`
	SiteName    string `json:"site_name,omitempty"`
	Domain      string `json:"domain,omitempty"`
}

// Page is the scrape result.
type Page struct {
	URL      string   `json:"url"`
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// Tool reads a website's content.
type Tool struct {
	opts Options
}

func New(optFns ...func(o *Options)) *Tool {
	opts := Options{
		UserAgent:        DefaultUserAgent,
		Timeout:          30 * time.Second,
		MaxBodyBytes:     5 << 20,
		MaxContentLength: 20000,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Tool{opts: opts}
}

func (t *Tool) Name() string { return "scrape_website" }

func (t *Tool) Description() string {
	return "A tool that can be used to read a website content. Input is the full website_url including the scheme."
}

func (t *Tool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"website_url": map[string]any{
				"type":        "string",
				"description": "Mandatory website url to read the file",
			},
		},
		"required": []string{"website_url"},
	}
}

func (t *Tool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	raw, ok := tool.StringArg(args, "website_url")
	if !ok {
		return nil, tool.NewToolError(t.Name(), "website_url is required", tool.CodeValidation)
	}

	page, err := t.Scrape(toolCtx.Context(), raw)
	if err != nil {
		toolCtx.Logger().Warn("scrape.failed", "url", raw, "error", err.Error())
		return nil, tool.NewToolError(t.Name(), err.Error(), tool.CodeExecution)
	}

	toolCtx.Logger().Debug("scrape.done", "url", raw, "chars", len(page.Content))

	text := page.Content
	if page.Metadata.Title != "" {
		text = fmt.Sprintf("# %s\n\n%s", page.Metadata.Title, page.Content)
	}

	if t.opts.SaveArtifacts {
		if err := toolCtx.SaveArtifact(ArtifactID(page.URL), []byte(text)); err != nil {
			toolCtx.LogWarn("scrape.artifact.failed", "url", page.URL, "error", err.Error())
		}
	}

	return text, nil
}

var unsafeArtifactChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ArtifactID names the artifact a scraped page is saved under:
// "scrape/<host><path>.md" with unsafe characters replaced by '_'.
func ArtifactID(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "scrape/" + unsafeArtifactChars.ReplaceAllString(pageURL, "_") + ".md"
	}
	name := strings.Trim(unsafeArtifactChars.ReplaceAllString(u.Host+u.Path, "_"), "_")
	return "scrape/" + name + ".md"
}

// Scrape fetches rawURL and converts its main content to markdown.
func (t *Tool) Scrape(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}

	doc, err := t.fetch(ctx, u.String())
	if err != nil {
		return nil, err
	}

	meta := extractMetadata(doc)
	meta.Domain = u.Host

	markdown, err := htmltomarkdown.ConvertString(
		extractMainContent(doc),
		converter.WithDomain(fmt.Sprintf("%s://%s", u.Scheme, u.Host)),
	)
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", rawURL, err)
	}

	return &Page{
		URL:      u.String(),
		Content:  truncate(cleanMarkdown(markdown), t.opts.MaxContentLength),
		Metadata: meta,
	}, nil
}

func (t *Tool) fetch(ctx context.Context, u string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", t.opts.UserAgent)
	req.Header.Set("Accept", defaultAccept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := t.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", u, resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if t.opts.MaxBodyBytes > 0 {
		body = io.LimitReader(resp.Body, t.opts.MaxBodyBytes)
	}

	return goquery.NewDocumentFromReader(body)
}

func extractMetadata(doc *goquery.Document) Metadata {
	var meta Metadata
	meta.Title = strings.TrimSpace(doc.Find("head title").First().Text())
	meta.Author, _ = doc.Find("meta[name='author']").Attr("content")
	meta.Description, _ = doc.Find("meta[name='description']").Attr("content")
	meta.SiteName, _ = doc.Find("meta[property='og:site_name']").Attr("content")
	return meta
}

// extractMainContent strips page chrome and returns the first matching
// content container's HTML.
func extractMainContent(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, header, footer, iframe").Remove()

	for _, selector := range []string{"main", "#content, #main", ".content, .main", "article", "body"} {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		if html, err := sel.Html(); err == nil && strings.TrimSpace(html) != "" {
			return html
		}
	}

	html, _ := doc.Html()
	return html
}

func cleanMarkdown(content string) string {
	content = blankLines.ReplaceAllString(content, "\n\n")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "\n\n[content truncated]"
}
