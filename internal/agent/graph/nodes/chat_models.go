package nodes

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/chatgraph-poc/server/internal/agent/model"
	logx "github.com/chatgraph-poc/server/pkg/logger"
)

const (
	ProviderAzure  = "azure"
	ProviderGemini = "gemini"
)

// ChatModel is the model-call collaborator of the chatbot node.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error)
}

type callbacksChecker interface {
	IsCallbacksEnabled() bool
}

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	Chat   model.ChatModelConfig
	Azure  model.AzureOpenAIConfig
	Gemini model.GeminiConfig
	// AzureHTTPClient authenticates Azure requests when no API key is configured.
	AzureHTTPClient *http.Client
}

// ProviderModel is a constructed chat model and the name used for pricing.
type ProviderModel struct {
	Model    einomodel.BaseChatModel
	Name     string
	Provider string
}

// NewChatModel creates the chat model selected by cfg.Chat.Provider.
func NewChatModel(ctx context.Context, cfg ChatModelConfig) (*ProviderModel, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Chat.Provider))
	switch provider {
	case "", ProviderAzure:
		return newAzureChatModel(ctx, cfg)
	case ProviderGemini:
		return newGeminiChatModel(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown chat provider %q", cfg.Chat.Provider)
	}
}

func newAzureChatModel(ctx context.Context, cfg ChatModelConfig) (*ProviderModel, error) {
	az := cfg.Azure
	if az.Endpoint == "" {
		return nil, fmt.Errorf("AZURE_OPENAI_ENDPOINT is required")
	}
	if az.Deployment == "" {
		return nil, fmt.Errorf("AZURE_OPENAI_CHAT_DEPLOYMENT is required")
	}
	if az.APIKey == "" && cfg.AzureHTTPClient == nil {
		return nil, fmt.Errorf("azure chat model needs AZURE_OPENAI_API_KEY or an Entra ID credential")
	}

	mc := &openai.ChatModelConfig{
		ByAzure:     true,
		BaseURL:     strings.TrimRight(az.Endpoint, "/"),
		APIVersion:  az.APIVersion,
		Model:       az.Deployment,
		APIKey:      az.APIKey,
		Temperature: &cfg.Chat.Temperature,
		Timeout:     cfg.Chat.Timeout,
	}
	if az.APIKey == "" {
		mc.HTTPClient = cfg.AzureHTTPClient
	}
	if cfg.Chat.MaxTokens > 0 {
		mc.MaxTokens = &cfg.Chat.MaxTokens
	}

	cm, err := openai.NewChatModel(ctx, mc)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Azure OpenAI model")
		return nil, fmt.Errorf("error creating Azure OpenAI model: %w", err)
	}
	logx.Debug().Str("deployment", az.Deployment).Bool("api_key", az.APIKey != "").Msg("Azure OpenAI model ready")
	return &ProviderModel{Model: cm, Name: az.Deployment, Provider: ProviderAzure}, nil
}

func newGeminiChatModel(ctx context.Context, cfg ChatModelConfig) (*ProviderModel, error) {
	gc := cfg.Gemini
	if gc.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	client, err := genai.NewClient(ctx, geminiClientConfig(cfg))
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	conf := &gemini.Config{
		Client:      client,
		Model:       gc.Model,
		Temperature: &cfg.Chat.Temperature,
	}
	if cfg.Chat.MaxTokens > 0 {
		conf.MaxTokens = &cfg.Chat.MaxTokens
	}
	if gc.ThinkingBudget > 0 {
		conf.ThinkingConfig = &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(gc.ThinkingBudget),
		}
	}

	cm, err := gemini.NewChatModel(ctx, conf)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini model")
		return nil, fmt.Errorf("error creating Gemini model: %w", err)
	}
	return &ProviderModel{Model: cm, Name: gc.Model, Provider: ProviderGemini}, nil
}

type toolBinder interface {
	BindTools(tools []*schema.ToolInfo) error
}

// BindTools returns cm with infos bound. Models that only support the
// deprecated in-place binding are bound in place.
func BindTools(cm einomodel.BaseChatModel, infos []*schema.ToolInfo) (ChatModel, error) {
	if len(infos) == 0 {
		return cm, nil
	}
	switch m := cm.(type) {
	case einomodel.ToolCallingChatModel:
		bound, err := m.WithTools(infos)
		if err != nil {
			logx.Error().Err(err).Msg("Failed to bind tools")
			return nil, fmt.Errorf("failed to bind tools: %w", err)
		}
		logx.Debug().Int("tool_count", len(infos)).Msg("Successfully bound tools to chat model")
		return bound, nil
	case toolBinder:
		if err := m.BindTools(infos); err != nil {
			logx.Error().Err(err).Msg("Failed to bind tools")
			return nil, fmt.Errorf("failed to bind tools: %w", err)
		}
		logx.Debug().Int("tool_count", len(infos)).Msg("Successfully bound tools to chat model")
		return cm, nil
	default:
		return nil, fmt.Errorf("chat model %T does not support tool calling", cm)
	}
}

// geminiClientConfig applies CHAT_TIMEOUT to every Gemini request.
func geminiClientConfig(cfg ChatModelConfig) *genai.ClientConfig {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.Gemini.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Gemini.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.Gemini.BaseURL
	}
	if cfg.Chat.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Chat.Timeout}
	}
	return clientCfg
}
