package graph

import (
	"context"
	"fmt"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/chatgraph-poc/server/internal/agent/graph/nodes"
	"github.com/chatgraph-poc/server/internal/agent/graph/observers"
	"github.com/chatgraph-poc/server/internal/agent/graph/tools"
	"github.com/chatgraph-poc/server/internal/agent/model"
	errx "github.com/chatgraph-poc/server/internal/core/error"
	logx "github.com/chatgraph-poc/server/pkg/logger"
)

// Runner executes one turn of the dispatch loop against a conversation.
type Runner interface {
	// RunTurn appends the model's replies and the tool results to conv until
	// the model answers without tool calls, and returns that final answer.
	RunTurn(ctx context.Context, conv *model.Conversation, opts ...TurnOption) (*schema.Message, error)
}

// TurnOption customizes a single RunTurn call.
type TurnOption func(*nodes.Turn)

// WithMessageHook calls fn with every message appended during the turn, in order.
func WithMessageHook(fn func(*schema.Message)) TurnOption {
	return func(t *nodes.Turn) {
		t.OnMessage = fn
	}
}

// WithCallbacks adds callback handlers for the model, tool and graph events of the turn.
func WithCallbacks(handlers ...einocb.Handler) TurnOption {
	return func(t *nodes.Turn) {
		t.Handlers = append(t.Handlers, handlers...)
	}
}

// Config holds everything needed to build the dispatch graph.
type Config struct {
	// ChatModel is called with the whole conversation. Tools must already be bound.
	ChatModel nodes.ChatModel
	// ModelName is used for usage pricing only.
	ModelName   string
	Registry    *tools.Registry
	MaxRounds   int
	MaxParallel int
	Sequential  bool
}

// GraphBuilder handles the construction of the dispatch graph
type GraphBuilder struct {
	config *Config
	graph  *compose.Graph[*model.Conversation, *schema.Message]
}

type graphRunner struct {
	runnable compose.Runnable[*model.Conversation, *schema.Message]
}

func (r *graphRunner) RunTurn(ctx context.Context, conv *model.Conversation, opts ...TurnOption) (*schema.Message, error) {
	if conv == nil || !conv.HasUserMessage() {
		return nil, errx.ErrEmptyConversation
	}

	turn := &nodes.Turn{}
	for _, opt := range opts {
		opt(turn)
	}
	ctx = nodes.WithTurn(ctx, turn)

	handlers := append([]einocb.Handler{observers.NewAllCallbacks()}, turn.Handlers...)
	out, err := r.runnable.Invoke(ctx, conv, compose.WithCallbacks(handlers...))
	if err != nil {
		if typed := turn.Err(); typed != nil {
			return nil, typed
		}
		return nil, fmt.Errorf("run turn: %w", err)
	}
	return out, nil
}

// NewRunner builds the dispatch graph and returns a Runner over it.
func NewRunner(ctx context.Context, cfg *Config) (Runner, error) {
	runnable, err := BuildGraph(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logx.Debug().Strs("tools", cfg.Registry.Names()).Msg("Dispatch graph built successfully")
	return &graphRunner{runnable: runnable}, nil
}

// BuildGraph constructs and returns the compiled dispatch graph
func BuildGraph(ctx context.Context, config *Config) (compose.Runnable[*model.Conversation, *schema.Message], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.ChatModel == nil {
		return nil, fmt.Errorf("chat model is nil")
	}
	if config.Registry == nil {
		return nil, fmt.Errorf("tool registry is nil")
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[*model.Conversation, *schema.Message](
			compose.WithGenLocalState(func(ctx context.Context) *model.TurnState {
				return &model.TurnState{}
			}),
		),
	}

	if err := builder.addNodes(); err != nil {
		return nil, err
	}
	if err := builder.addEdges(); err != nil {
		return nil, err
	}
	if err := builder.addBranches(); err != nil {
		return nil, err
	}
	return builder.compile(ctx)
}

// addNodes adds the chatbot and tools nodes
func (b *GraphBuilder) addNodes() error {
	if err := b.graph.AddLambdaNode(nodes.NodeChatbot,
		nodes.NewChatbotNode(b.config.ChatModel, b.config.ModelName),
		compose.WithStatePreHandler(nodes.NewChatbotPreHandler()),
	); err != nil {
		return fmt.Errorf("add chatbot node: %w", err)
	}

	opts := tools.BatchOptions{Sequential: b.config.Sequential, MaxParallel: b.config.MaxParallel}
	if err := b.graph.AddLambdaNode(nodes.NodeTools,
		nodes.NewToolsNode(b.config.Registry, opts, b.config.MaxRounds),
	); err != nil {
		return fmt.Errorf("add tools node: %w", err)
	}
	return nil
}

// addEdges creates the fixed connections; the chatbot exit is a branch
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeChatbot},
		{nodes.NodeTools, nodes.NodeChatbot},
	}
	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			return fmt.Errorf("add edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// addBranches routes the chatbot output to the tools node or to END
func (b *GraphBuilder) addBranches() error {
	toolsBranch := compose.NewGraphBranch(
		nodes.NewToolsCondition(),
		map[string]bool{
			nodes.NodeTools: true,
			compose.END:     true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeChatbot, toolsBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding tools branch")
		return fmt.Errorf("error adding tools branch: %w", err)
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[*model.Conversation, *schema.Message], error) {
	// One chatbot and one tools step per round, plus the final answer and the
	// step that trips the round limit.
	maxRounds := b.config.MaxRounds
	if maxRounds <= 0 {
		maxRounds = nodes.DefaultMaxToolRounds
	}
	runnable, err := b.graph.Compile(ctx,
		compose.WithGraphName("dispatch"),
		compose.WithMaxRunSteps(2*maxRounds+4),
	)
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
