package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
)

// ===================================
// Search Tool (Tavily)
// ===================================

const (
	defaultSearchResults = 2
	maxSearchResults     = 10
)

type SearchInput struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
}

type SearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

type SearchOutput struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
}

// TavilyClient calls the Tavily search API.
type TavilyClient struct {
	apiKey     string
	baseURL    string
	maxResults int
	httpClient *http.Client
}

// NewTavilyClient creates a client. maxResults defaults to 2 and timeout to 15s.
func NewTavilyClient(apiKey, baseURL string, maxResults int, timeout time.Duration) *TavilyClient {
	if maxResults <= 0 {
		maxResults = defaultSearchResults
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.tavily.com"
	}
	return &TavilyClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		maxResults: maxResults,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type tavilyRequest struct {
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

// Search runs query and returns at most maxResults results (client default when <= 0).
func (c *TavilyClient) Search(ctx context.Context, query string, maxResults int) (*SearchOutput, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if c.apiKey == "" {
		return nil, fmt.Errorf("TAVILY_API_KEY not configured")
	}
	if maxResults <= 0 {
		maxResults = c.maxResults
	}
	maxResults = clampInt(maxResults, 1, maxSearchResults)

	body, err := json.Marshal(tavilyRequest{Query: query, MaxResults: maxResults, SearchDepth: "basic"})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var data struct {
		Results []SearchResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if len(data.Results) > maxResults {
		data.Results = data.Results[:maxResults]
	}
	if data.Results == nil {
		data.Results = []SearchResult{}
	}
	return &SearchOutput{Query: query, Results: data.Results}, nil
}

// NewSearchTool exposes client as the web search tool under name.
func NewSearchTool(name string, client *TavilyClient) tool.InvokableTool {
	if name == "" {
		name = ToolSearch
	}
	return utils.NewTool(
		&schema.ToolInfo{
			Name: name,
			Desc: "Search the web for current information. Returns titles, URLs and content snippets of the best matching pages. Use it for facts you are not sure about or that may have changed recently.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {
					Type:     schema.String,
					Desc:     "Search query, e.g. \"node in LangGraph\".",
					Required: true,
				},
				"max_results": {
					Type: schema.Integer,
					Desc: fmt.Sprintf("Maximum number of results to return (default: %d, max: %d)", client.maxResults, maxSearchResults),
				},
			}),
		},
		func(ctx context.Context, in *SearchInput) (*SearchOutput, error) {
			return client.Search(ctx, in.Query, in.MaxResults)
		},
	)
}

// clampInt returns v limited to [min, max].
func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
