package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/chatgraph-poc/server/internal/agent/model"
	"github.com/chatgraph-poc/server/internal/core"
	logx "github.com/chatgraph-poc/server/pkg/logger"
	pkgredis "github.com/chatgraph-poc/server/pkg/redis"
)

// AppConfig defines all configurable parameters of chatgraph, sourced from
// environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment core.Environment `envconfig:"APP_ENV" default:"development"`
	LogLevel    string           `envconfig:"LOG_LEVEL"`
	// ToolsConfig is the optional YAML file listing the registered tools.
	ToolsConfig string `envconfig:"TOOLS_CONFIG" default:"tools.yaml"`

	// Infrastructure
	Redis pkgredis.Config

	// LLM provider
	Chat   model.ChatModelConfig
	Azure  model.AzureOpenAIConfig
	Gemini model.GeminiConfig

	// Agent configs
	Search       model.SearchConfig
	Conversation model.ConversationConfig
	Prompt       model.PromptConfig

	// Web endpoint
	Server   model.ServerConfig
	Calendar model.CalendarConfig
}

// Load reads envFiles (".env" when none given) into the process environment
// and decodes AppConfig from it. Missing env files are only logged.
func Load(envFiles ...string) (*AppConfig, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil {
			logx.Warn().Str("file", f).Err(err).Msg("Could not load env file")
		}
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}
	return &cfg, nil
}
