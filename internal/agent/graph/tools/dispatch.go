package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/sync/errgroup"

	errx "github.com/chatgraph-poc/server/internal/core/error"
	logx "github.com/chatgraph-poc/server/pkg/logger"
)

// BatchOptions controls how the tool calls of one assistant message run.
type BatchOptions struct {
	Sequential  bool
	MaxParallel int // <= 0 means unbounded
}

// Resolve runs a single tool call and returns its tool message.
// A name missing from the registry is an *errx.UnknownToolError; a failure
// inside the tool is reported to the model through the message content.
func (r *Registry) Resolve(ctx context.Context, call schema.ToolCall) (*schema.Message, error) {
	name := call.Function.Name
	t, ok := r.Lookup(name)
	if !ok {
		return nil, &errx.UnknownToolError{Name: name, CallID: call.ID}
	}
	content := invoke(ctx, name, t, call.Function.Arguments)
	return schema.ToolMessage(content, call.ID, schema.WithToolName(name)), nil
}

// ResolveBatch resolves calls and returns their tool messages in call order.
// Every name is checked before any tool runs, so an unknown tool leaves no
// partial results behind.
func (r *Registry) ResolveBatch(ctx context.Context, calls []schema.ToolCall, opts BatchOptions) ([]*schema.Message, error) {
	for _, c := range calls {
		if _, ok := r.Lookup(c.Function.Name); !ok {
			return nil, &errx.UnknownToolError{Name: c.Function.Name, CallID: c.ID}
		}
	}

	out := make([]*schema.Message, len(calls))
	if opts.Sequential || len(calls) <= 1 {
		for i, c := range calls {
			msg, err := r.Resolve(ctx, c)
			if err != nil {
				return nil, err
			}
			out[i] = msg
		}
		return out, nil
	}

	var g errgroup.Group
	if opts.MaxParallel > 0 {
		g.SetLimit(opts.MaxParallel)
	}
	for i, c := range calls {
		g.Go(func() error {
			msg, err := r.Resolve(ctx, c)
			if err != nil {
				return err
			}
			out[i] = msg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

type callbacksChecker interface {
	IsCallbacksEnabled() bool
}

// invoke calls the tool and turns any failure into an error payload.
// Tools that do not report their own callbacks get them emitted here.
func invoke(ctx context.Context, name string, t tool.InvokableTool, args string) (content string) {
	if strings.TrimSpace(args) == "" {
		args = "{}"
	}

	emit := true
	if c, ok := t.(callbacksChecker); ok && c.IsCallbacksEnabled() {
		emit = false
	}
	if emit {
		ctx = einocb.ReuseHandlers(ctx, &einocb.RunInfo{
			Name:      name,
			Type:      "DispatchTool",
			Component: components.ComponentOfTool,
		})
		ctx = einocb.OnStart(ctx, &tool.CallbackInput{ArgumentsInJSON: args})
	}

	var err error
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("tool panicked: %v", rec)
		}
		if err != nil {
			logx.Warn().Err(err).Str("tool_name", name).Msg("tool failed; reporting error to model")
			if emit {
				einocb.OnError(ctx, err)
			}
			content = errorPayload(name, err)
			return
		}
		if emit {
			einocb.OnEnd(ctx, &tool.CallbackOutput{Response: content})
		}
	}()

	content, err = t.InvokableRun(ctx, args)
	return content
}

// errorPayload is the tool message content for a failed tool.
func errorPayload(name string, err error) string {
	b, mErr := json.Marshal(map[string]string{"error": err.Error(), "tool": name})
	if mErr != nil {
		return fmt.Sprintf(`{"error":%q,"tool":%q}`, err.Error(), name)
	}
	return string(b)
}
