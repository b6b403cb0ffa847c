package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

const (
	ToolSearch    = "search"
	ToolFetchPage = "fetch_page"
)

// Registry is the immutable name → tool mapping built once at startup and
// injected into the dispatch graph.
type Registry struct {
	tools map[string]tool.InvokableTool
	infos []*schema.ToolInfo // registration order, used for model binding
}

// NewRegistry registers ts under the names reported by their Info.
// Empty and duplicate names are rejected.
func NewRegistry(ctx context.Context, ts ...tool.InvokableTool) (*Registry, error) {
	r := &Registry{
		tools: make(map[string]tool.InvokableTool, len(ts)),
		infos: make([]*schema.ToolInfo, 0, len(ts)),
	}
	for i, t := range ts {
		if t == nil {
			return nil, fmt.Errorf("tool %d is nil", i)
		}
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tool %d info: %w", i, err)
		}
		name := strings.TrimSpace(info.Name)
		if name == "" {
			return nil, fmt.Errorf("tool %d has an empty name", i)
		}
		if _, exists := r.tools[name]; exists {
			return nil, fmt.Errorf("tool %s already registered", name)
		}
		r.tools[name] = t
		r.infos = append(r.infos, info)
	}
	return r, nil
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (tool.InvokableTool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.tools)
}

// ToolInfos returns the tool descriptions to bind to a chat model.
func (r *Registry) ToolInfos() []*schema.ToolInfo {
	out := make([]*schema.ToolInfo, len(r.infos))
	copy(out, r.infos)
	return out
}
