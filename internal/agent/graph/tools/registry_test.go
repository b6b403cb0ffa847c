package tools

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

type fakeTool struct {
	name  string
	run   func(ctx context.Context, args string) (string, error)
	calls atomic.Int32
}

func (f *fakeTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{Name: f.name, Desc: "fake " + f.name}, nil
}

func (f *fakeTool) InvokableRun(ctx context.Context, args string, _ ...tool.Option) (string, error) {
	f.calls.Add(1)
	if f.run == nil {
		return `{"ok":true}`, nil
	}
	return f.run(ctx, args)
}

func echoTool(name string) *fakeTool {
	return &fakeTool{name: name, run: func(_ context.Context, args string) (string, error) {
		return name + ":" + args, nil
	}}
}

func TestNewRegistry(t *testing.T) {
	ctx := context.Background()

	r, err := NewRegistry(ctx, echoTool("search"), echoTool("fetch_page"))
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if r.Len() != 2 {
		t.Fatalf("len = %d", r.Len())
	}
	if got := strings.Join(r.Names(), ","); got != "fetch_page,search" {
		t.Fatalf("names = %s", got)
	}
	infos := r.ToolInfos()
	if len(infos) != 2 || infos[0].Name != "search" || infos[1].Name != "fetch_page" {
		t.Fatalf("infos should keep registration order: %+v", infos)
	}
	if _, ok := r.Lookup("search"); !ok {
		t.Fatal("search not found")
	}
	if _, ok := r.Lookup("nonexistent_tool"); ok {
		t.Fatal("unexpected tool found")
	}
}

func TestNewRegistryRejectsInvalidTools(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		tools   []tool.InvokableTool
		wantErr string
	}{
		{name: "duplicate", tools: []tool.InvokableTool{echoTool("search"), echoTool("search")}, wantErr: "already registered"},
		{name: "empty name", tools: []tool.InvokableTool{echoTool("  ")}, wantErr: "empty name"},
		{name: "nil tool", tools: []tool.InvokableTool{nil}, wantErr: "is nil"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(ctx, tt.tools...)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestRegistryToolInfosIsACopy(t *testing.T) {
	r, err := NewRegistry(context.Background(), echoTool("search"))
	if err != nil {
		t.Fatal(err)
	}
	infos := r.ToolInfos()
	infos[0] = nil
	if r.ToolInfos()[0] == nil {
		t.Fatal("registry infos were mutated through the returned slice")
	}
}
