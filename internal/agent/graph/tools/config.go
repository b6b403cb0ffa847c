package tools

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"gopkg.in/yaml.v3"

	"github.com/chatgraph-poc/server/internal/agent/model"
	logx "github.com/chatgraph-poc/server/pkg/logger"
)

// Tool kinds accepted in the tools file.
const (
	KindTavily    = "tavily"
	KindFetchPage = "fetch_page"
)

// FileConfig is the tools file layout:
//
//	tools:
//	  - name: search
//	    kind: tavily
//	    max_results: 2
//	  - name: fetch_page
//	    kind: fetch_page
//	    max_chars: 20000
type FileConfig struct {
	Tools []ToolSpec `yaml:"tools"`
}

type ToolSpec struct {
	Name       string        `yaml:"name"`
	Kind       string        `yaml:"kind"`
	MaxResults int           `yaml:"max_results,omitempty"`
	MaxChars   int           `yaml:"max_chars,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
}

// DefaultFileConfig registers only the web search tool.
func DefaultFileConfig() FileConfig {
	return FileConfig{Tools: []ToolSpec{{Name: ToolSearch, Kind: KindTavily}}}
}

// LoadFileConfig reads path. A missing file yields DefaultFileConfig.
func LoadFileConfig(path string) (FileConfig, error) {
	if path == "" {
		return DefaultFileConfig(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logx.Debug().Str("path", path).Msg("tools file not found; using default tools")
			return DefaultFileConfig(), nil
		}
		return FileConfig{}, fmt.Errorf("read tools file: %w", err)
	}
	return ParseFileConfig(b)
}

// ParseFileConfig decodes a tools file.
func ParseFileConfig(b []byte) (FileConfig, error) {
	var fc FileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, fmt.Errorf("parse tools file: %w", err)
	}
	if len(fc.Tools) == 0 {
		return FileConfig{}, fmt.Errorf("tools file lists no tools")
	}
	return fc, nil
}

// BuildRegistry constructs every tool in fc and registers it.
func BuildRegistry(ctx context.Context, fc FileConfig, search model.SearchConfig) (*Registry, error) {
	ts := make([]tool.InvokableTool, 0, len(fc.Tools))
	for _, spec := range fc.Tools {
		t, err := buildTool(spec, search)
		if err != nil {
			return nil, err
		}
		ts = append(ts, t)
	}
	r, err := NewRegistry(ctx, ts...)
	if err != nil {
		return nil, err
	}
	logx.Info().Strs("tools", r.Names()).Msg("Tool registry built")
	return r, nil
}

func buildTool(spec ToolSpec, search model.SearchConfig) (tool.InvokableTool, error) {
	timeout := spec.Timeout
	switch spec.Kind {
	case KindTavily:
		if search.TavilyAPIKey == "" {
			return nil, fmt.Errorf("tool %s: TAVILY_API_KEY is required", spec.Name)
		}
		if timeout == 0 {
			timeout = search.Timeout
		}
		maxResults := spec.MaxResults
		if maxResults == 0 {
			maxResults = search.MaxResults
		}
		client := NewTavilyClient(search.TavilyAPIKey, search.BaseURL, maxResults, timeout)
		return NewSearchTool(spec.Name, client), nil
	case KindFetchPage:
		return NewFetchPageTool(spec.Name, NewPageFetcher(spec.MaxChars, timeout)), nil
	default:
		return nil, fmt.Errorf("tool %s: unknown kind %q", spec.Name, spec.Kind)
	}
}
