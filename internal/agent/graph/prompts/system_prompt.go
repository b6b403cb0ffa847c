package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/chatgraph-poc/server/internal/agent/graph/observers"
	"github.com/chatgraph-poc/server/internal/agent/model"
)

//go:embed template/system_prompt.txt
var coreSystemPrompt string

// RenderSystem renders the assistant system prompt and triggers prompt callbacks.
// The default config renders "You are a helpful assistant."
func RenderSystem(ctx context.Context, config model.PromptConfig) (string, error) {
	name := strings.TrimSpace(config.AssistantName)
	if name == "" {
		name = "assistant"
	}

	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(coreSystemPrompt),
	)
	vars := map[string]any{
		"AssistantName": name,
		"Instructions":  strings.TrimSpace(config.Instructions),
	}
	ctx = einocb.InitCallbacks(ctx, &einocb.RunInfo{
		Name:      "system_prompt",
		Type:      "SystemPrompt",
		Component: components.ComponentOfPrompt,
	}, observers.NewPromptCallbacks())
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("system prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("system prompt render: empty result")
	}
	return strings.TrimSpace(msgs[0].Content), nil
}
