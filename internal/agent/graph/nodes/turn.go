package nodes

import (
	"context"
	"sync"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/schema"
)

type turnKey struct{}

// Turn carries per-invocation collaborators that are not graph state: the
// message hook and the first typed error raised by a node. The graph wraps
// node errors, so callers read the original back from here.
type Turn struct {
	OnMessage func(*schema.Message)
	// Handlers receive the turn's callbacks next to the logging observers.
	Handlers []einocb.Handler

	mu  sync.Mutex
	err error
}

// WithTurn attaches t to ctx for the nodes of one graph invocation.
func WithTurn(ctx context.Context, t *Turn) context.Context {
	return context.WithValue(ctx, turnKey{}, t)
}

func turnFrom(ctx context.Context) *Turn {
	if t, ok := ctx.Value(turnKey{}).(*Turn); ok && t != nil {
		return t
	}
	return &Turn{}
}

// Err returns the error recorded by a node, if any.
func (t *Turn) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Turn) fail(err error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err == nil {
		t.err = err
	}
	return err
}

func (t *Turn) emit(m *schema.Message) {
	if t.OnMessage != nil {
		t.OnMessage(m)
	}
}
