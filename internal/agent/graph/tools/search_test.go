package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type tavilyFake struct {
	t       *testing.T
	lastReq tavilyRequest
	status  int
}

func (f *tavilyFake) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != "/search" {
		http.NotFound(w, r)
		return
	}
	if r.Header.Get("Authorization") != "Bearer tvly-test" {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"invalid key"}`))
		return
	}
	if err := json.NewDecoder(r.Body).Decode(&f.lastReq); err != nil {
		f.t.Errorf("decode request: %v", err)
	}
	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte("upstream exploded"))
		return
	}
	results := []SearchResult{
		{Title: "LangGraph concepts", URL: "https://langchain-ai.github.io/langgraph/concepts/", Content: "Nodes are functions that receive the state.", Score: 0.93},
		{Title: "Graph API", URL: "https://example.com/graph", Content: "A node does work.", Score: 0.81},
		{Title: "Extra", URL: "https://example.com/extra", Content: "Ignored.", Score: 0.2},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"query": f.lastReq.Query, "results": results})
}

func TestTavilyClientSearch(t *testing.T) {
	fake := &tavilyFake{t: t}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := NewTavilyClient("tvly-test", srv.URL+"/", 0, time.Second)
	out, err := c.Search(context.Background(), "  node in LangGraph ", 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if fake.lastReq.Query != "node in LangGraph" || fake.lastReq.MaxResults != 2 {
		t.Fatalf("request = %+v", fake.lastReq)
	}
	if out.Query != "node in LangGraph" || len(out.Results) != 2 {
		t.Fatalf("output = %+v", out)
	}
	if out.Results[0].URL != "https://langchain-ai.github.io/langgraph/concepts/" {
		t.Fatalf("first result = %+v", out.Results[0])
	}
}

func TestTavilyClientSearchErrors(t *testing.T) {
	fake := &tavilyFake{t: t}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	ctx := context.Background()

	tests := []struct {
		name    string
		client  *TavilyClient
		query   string
		status  int
		wantErr string
	}{
		{name: "empty query", client: NewTavilyClient("tvly-test", srv.URL, 2, time.Second), query: " ", wantErr: "query is required"},
		{name: "missing key", client: NewTavilyClient("", srv.URL, 2, time.Second), query: "q", wantErr: "TAVILY_API_KEY"},
		{name: "bad key", client: NewTavilyClient("wrong", srv.URL, 2, time.Second), query: "q", wantErr: "search returned 401"},
		{name: "upstream error", client: NewTavilyClient("tvly-test", srv.URL, 2, time.Second), query: "q", status: http.StatusBadGateway, wantErr: "upstream exploded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake.status = tt.status
			_, err := tt.client.Search(ctx, tt.query, 0)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestSearchToolClampsMaxResults(t *testing.T) {
	fake := &tavilyFake{t: t}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	st := NewSearchTool("", NewTavilyClient("tvly-test", srv.URL, 2, time.Second))
	info, err := st.Info(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if info.Name != ToolSearch {
		t.Fatalf("name = %s", info.Name)
	}

	raw, err := st.InvokableRun(context.Background(), `{"query":"node in LangGraph","max_results":50}`)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if fake.lastReq.MaxResults != maxSearchResults {
		t.Fatalf("max_results sent = %d, want %d", fake.lastReq.MaxResults, maxSearchResults)
	}
	var out SearchOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatalf("tool output is not JSON: %v", err)
	}
	if len(out.Results) != 3 {
		t.Fatalf("results = %d", len(out.Results))
	}
}

func TestClampInt(t *testing.T) {
	cases := []struct{ v, want int }{{-3, 1}, {0, 1}, {5, 5}, {10, 10}, {11, 10}}
	for _, c := range cases {
		if got := clampInt(c.v, 1, 10); got != c.want {
			t.Errorf("clampInt(%d) = %d, want %d", c.v, got, c.want)
		}
	}
}
