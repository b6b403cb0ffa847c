package tools

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"github.com/go-shiori/go-readability"
)

const (
	fetchUserAgent  = "Mozilla/5.0 (compatible; chatgraph/1.0)"
	defaultMaxChars = 20000
	maxFetchBytes   = 5 << 20
)

type FetchPageInput struct {
	URL string `json:"url"`
}

type FetchPageOutput struct {
	URL       string `json:"url"`
	Title     string `json:"title,omitempty"`
	Text      string `json:"text"`
	Truncated bool   `json:"truncated"`
}

// PageFetcher downloads a page and extracts its readable text.
type PageFetcher struct {
	maxChars   int
	httpClient *http.Client
}

// NewPageFetcher creates a fetcher. maxChars defaults to 20000.
func NewPageFetcher(maxChars int, timeout time.Duration) *PageFetcher {
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &PageFetcher{maxChars: maxChars, httpClient: &http.Client{Timeout: timeout}}
}

// Fetch downloads rawURL and returns readable text.
func (f *PageFetcher) Fetch(ctx context.Context, rawURL string) (*FetchPageOutput, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("only http/https allowed, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing domain in URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	out := &FetchPageOutput{URL: resp.Request.URL.String()}
	if strings.Contains(resp.Header.Get("Content-Type"), "html") {
		article, err := readability.FromReader(bytes.NewReader(body), u)
		if err != nil {
			return nil, fmt.Errorf("extract readable content: %w", err)
		}
		out.Title = article.Title
		out.Text = strings.TrimSpace(article.TextContent)
	} else {
		out.Text = strings.TrimSpace(string(body))
	}

	if r := []rune(out.Text); len(r) > f.maxChars {
		out.Text = string(r[:f.maxChars])
		out.Truncated = true
	}
	return out, nil
}

// NewFetchPageTool exposes f as a tool under name.
func NewFetchPageTool(name string, f *PageFetcher) tool.InvokableTool {
	if name == "" {
		name = ToolFetchPage
	}
	return utils.NewTool(
		&schema.ToolInfo{
			Name: name,
			Desc: "Fetch a web page by URL and return its readable text. Use it to read a page found with search.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"url": {
					Type:     schema.String,
					Desc:     "Absolute http(s) URL of the page.",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, in *FetchPageInput) (*FetchPageOutput, error) {
			return f.Fetch(ctx, in.URL)
		},
	)
}
