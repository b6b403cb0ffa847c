// Package container wires chatgraph services using go.uber.org/dig.
package container

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/dig"

	"github.com/chatgraph-poc/server/internal/agent/graph"
	"github.com/chatgraph-poc/server/internal/agent/graph/conversations"
	"github.com/chatgraph-poc/server/internal/agent/graph/nodes"
	"github.com/chatgraph-poc/server/internal/agent/graph/prompts"
	"github.com/chatgraph-poc/server/internal/agent/graph/tools"
	"github.com/chatgraph-poc/server/internal/agent/model"
	"github.com/chatgraph-poc/server/internal/agent/repo"
	"github.com/chatgraph-poc/server/internal/azauth"
	"github.com/chatgraph-poc/server/internal/calendar"
	"github.com/chatgraph-poc/server/internal/config"
	"github.com/chatgraph-poc/server/internal/web"
	logx "github.com/chatgraph-poc/server/pkg/logger"
)

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Container resolves services on first use. Callers use the typed getters;
// they never need to import dig directly.
type Container struct {
	d   *dig.Container
	cfg *config.AppConfig

	mu      sync.Mutex
	closers []func() error
}

// SystemPrompt is the rendered system prompt; empty when prompts are disabled.
type SystemPrompt string

// New registers every provider. Nothing is constructed until a getter asks for it.
func New(ctx context.Context, cfg *config.AppConfig) (*Container, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	c := &Container{d: dig.New(), cfg: cfg}

	providers := []any{
		func() context.Context { return ctx },
		func() *config.AppConfig { return cfg },
		newChatModel,
		newToolRegistry,
		newRunner,
		newSystemPrompt,
		c.newConversationRepository,
		newManager,
		newCalendarSource,
		newRouter,
		newServer,
	}
	for _, p := range providers {
		if err := c.d.Provide(p); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Container) Config() *config.AppConfig { return c.cfg }

func (c *Container) Runner() (graph.Runner, error) {
	var r graph.Runner
	err := c.d.Invoke(func(v graph.Runner) { r = v })
	return r, dig.RootCause(err)
}

func (c *Container) Manager() (*conversations.Manager, error) {
	var m *conversations.Manager
	err := c.d.Invoke(func(v *conversations.Manager) { m = v })
	return m, dig.RootCause(err)
}

func (c *Container) Server() (*web.Server, error) {
	var s *web.Server
	err := c.d.Invoke(func(v *web.Server) { s = v })
	return s, dig.RootCause(err)
}

// Close releases the Redis client when one was created.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	c.closers = nil
	return errors.Join(errs...)
}

func (c *Container) onClose(fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closers = append(c.closers, fn)
}

// ====================== Providers ======================

func newChatModel(ctx context.Context, cfg *config.AppConfig) (*nodes.ProviderModel, error) {
	mc := nodes.ChatModelConfig{Chat: cfg.Chat, Azure: cfg.Azure, Gemini: cfg.Gemini}

	provider := strings.ToLower(strings.TrimSpace(cfg.Chat.Provider))
	if (provider == "" || provider == nodes.ProviderAzure) && cfg.Azure.APIKey == "" {
		cred, err := azauth.NewChainedCredential(cfg.Azure.ClientID, cfg.Azure.TenantID)
		if err != nil {
			return nil, fmt.Errorf("azure credential: %w", err)
		}
		mc.AzureHTTPClient = azauth.NewHTTPClient(cred, azauth.CognitiveServicesScope, cfg.Chat.Timeout)
	}
	return nodes.NewChatModel(ctx, mc)
}

func newToolRegistry(ctx context.Context, cfg *config.AppConfig) (*tools.Registry, error) {
	fc, err := tools.LoadFileConfig(cfg.ToolsConfig)
	if err != nil {
		return nil, err
	}
	return tools.BuildRegistry(ctx, fc, cfg.Search)
}

func newRunner(ctx context.Context, cfg *config.AppConfig, pm *nodes.ProviderModel, reg *tools.Registry) (graph.Runner, error) {
	cm, err := nodes.BindTools(pm.Model, reg.ToolInfos())
	if err != nil {
		return nil, err
	}
	logx.Info().Str("provider", pm.Provider).Str("model", pm.Name).Strs("tools", reg.Names()).Msg("Chat model ready")

	return graph.NewRunner(ctx, &graph.Config{
		ChatModel:   cm,
		ModelName:   pm.Name,
		Registry:    reg,
		MaxRounds:   cfg.Conversation.Tools.MaxRounds,
		MaxParallel: cfg.Conversation.Tools.MaxParallel,
		Sequential:  cfg.Conversation.Tools.Sequential,
	})
}

func newSystemPrompt(ctx context.Context, cfg *config.AppConfig) (SystemPrompt, error) {
	if cfg.Prompt.Disabled {
		return "", nil
	}
	p, err := prompts.RenderSystem(ctx, cfg.Prompt)
	if err != nil {
		return "", err
	}
	return SystemPrompt(p), nil
}

func (c *Container) newConversationRepository(ctx context.Context, cfg *config.AppConfig) (model.ConversationRepository, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Conversation.Store)) {
	case "", StoreMemory:
		return repo.NewMemoryConversationRepository(), nil
	case StoreRedis:
		rdb, err := cfg.Redis.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to initialise Redis client: %w", err)
		}
		c.onClose(rdb.Close)
		return repo.NewRedisConversationRepository(rdb, cfg.Conversation.TTL), nil
	default:
		return nil, fmt.Errorf("unknown conversation store %q", cfg.Conversation.Store)
	}
}

func newManager(cfg *config.AppConfig, conversationRepo model.ConversationRepository, runner graph.Runner, prompt SystemPrompt) *conversations.Manager {
	return conversations.NewManager(conversationRepo, runner, string(prompt), cfg.Conversation)
}

// newCalendarSource returns nil when the calendar route is off or Graph
// cannot be reached with the default credential.
func newCalendarSource(cfg *config.AppConfig) calendar.Source {
	if !cfg.Calendar.Enabled {
		return nil
	}
	cred, err := azauth.NewDefaultCredential()
	if err != nil {
		logx.Warn().Err(err).Msg("Calendar route disabled: no Azure credential")
		return nil
	}
	src, err := calendar.NewGraphSource(cred)
	if err != nil {
		logx.Warn().Err(err).Msg("Calendar route disabled: Graph client")
		return nil
	}
	return src
}

func newRouter(cfg *config.AppConfig, runner graph.Runner, source calendar.Source, prompt SystemPrompt) *web.Router {
	return web.NewRouter(runner, source, string(prompt), cfg.Calendar)
}

func newServer(cfg *config.AppConfig, router *web.Router) (*web.Server, error) {
	return web.NewServer(router, cfg.Server)
}
