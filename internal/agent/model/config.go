package model

import "time"

// ================ Config ================
type ConversationConfig struct {
	// Store selects the conversation repository: "memory" or "redis".
	Store      string        `envconfig:"CONVERSATION_STORE" default:"memory"`
	TTL        time.Duration `envconfig:"CONVERSATION_TTL" default:"15m"`
	MaxHistory int           `envconfig:"CONVERSATION_MAX_HISTORY" default:"40"`
	Tools      struct {
		MaxRounds   int  `envconfig:"CONVERSATION_TOOL_MAX_ROUNDS" default:"10"`
		MaxParallel int  `envconfig:"CONVERSATION_TOOL_MAX_PARALLEL" default:"4"`
		Sequential  bool `envconfig:"CONVERSATION_TOOL_SEQUENTIAL" default:"false"`
	}
}

type ChatModelConfig struct {
	// Provider is "azure" or "gemini".
	Provider    string        `envconfig:"CHAT_PROVIDER" default:"azure"`
	Temperature float32       `envconfig:"CHAT_TEMPERATURE" default:"0"`
	MaxTokens   int           `envconfig:"CHAT_MAX_TOKENS" default:"0"`
	Timeout     time.Duration `envconfig:"CHAT_TIMEOUT" default:"60s"`
}

type AzureOpenAIConfig struct {
	Endpoint   string `envconfig:"AZURE_OPENAI_ENDPOINT"`
	Deployment string `envconfig:"AZURE_OPENAI_CHAT_DEPLOYMENT" default:"gpt-4o-2024-08-06"`
	APIVersion string `envconfig:"AZURE_OPENAI_API_VERSION" default:"2024-08-01-preview"`
	// APIKey is optional; without it requests carry Entra ID bearer tokens.
	APIKey   string `envconfig:"AZURE_OPENAI_API_KEY"`
	ClientID string `envconfig:"AZURE_CLIENT_ID"`
	TenantID string `envconfig:"AZURE_TENANT_ID"`
}

type GeminiConfig struct {
	APIKey         string `envconfig:"GEMINI_API_KEY"`
	BaseURL        string `envconfig:"GEMINI_BASE_URL"`
	Model          string `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
	ThinkingBudget int32  `envconfig:"GEMINI_THINKING_BUDGET" default:"0"`
}

type SearchConfig struct {
	TavilyAPIKey string        `envconfig:"TAVILY_API_KEY"`
	BaseURL      string        `envconfig:"TAVILY_BASE_URL" default:"https://api.tavily.com"`
	MaxResults   int           `envconfig:"SEARCH_MAX_RESULTS" default:"2"`
	Timeout      time.Duration `envconfig:"SEARCH_TIMEOUT" default:"15s"`
}

type PromptConfig struct {
	AssistantName string `envconfig:"PROMPT_ASSISTANT_NAME" default:"assistant"`
	// Instructions are appended to the system prompt when set.
	Instructions string `envconfig:"PROMPT_INSTRUCTIONS"`
	// Disabled skips the system message entirely.
	Disabled bool `envconfig:"PROMPT_DISABLED" default:"false"`
}

type ServerConfig struct {
	Addr            string        `envconfig:"SERVER_ADDR" default:":50505"`
	TurnTimeout     time.Duration `envconfig:"SERVER_TURN_TIMEOUT" default:"2m"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"5s"`
}

type CalendarConfig struct {
	// Keywords route a user message to the calendar instead of the chat model.
	Keywords []string `envconfig:"CALENDAR_KEYWORDS" default:"appointments,meetings"`
	Enabled  bool     `envconfig:"CALENDAR_ENABLED" default:"true"`
}
