package conversations

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/chatgraph-poc/server/internal/agent/graph"
	"github.com/chatgraph-poc/server/internal/agent/model"
	errx "github.com/chatgraph-poc/server/internal/core/error"
	logx "github.com/chatgraph-poc/server/pkg/logger"
)

// Manager runs turns against stored conversations: it rebuilds the
// conversation from the repository, runs the dispatch loop and stores what
// the turn appended.
type Manager struct {
	conversationRepo model.ConversationRepository
	runner           graph.Runner
	systemPrompt     string
	maxHistory       int
}

// NewManager creates a Manager. An empty systemPrompt sends no system message.
func NewManager(conversationRepo model.ConversationRepository, runner graph.Runner, systemPrompt string, config model.ConversationConfig) *Manager {
	return &Manager{
		conversationRepo: conversationRepo,
		runner:           runner,
		systemPrompt:     systemPrompt,
		maxHistory:       config.MaxHistory,
	}
}

// Ask appends in.Query to the stored conversation, runs one turn and returns
// the final assistant message. Messages appended by the turn are stored even
// when the turn fails, so an assistant message that asked for an unknown tool
// stays on record.
func (m *Manager) Ask(ctx context.Context, in model.QueryInput, opts ...graph.TurnOption) (*schema.Message, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, errx.BadRequest(errors.New("query is empty"))
	}
	if in.ConversationID == "" {
		return nil, errx.BadRequest(errors.New("conversation id is empty"))
	}

	history, err := m.conversationRepo.LoadHistory(ctx, in.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	conv := model.NewConversation(in.ConversationID)
	if m.systemPrompt != "" {
		conv.Append(schema.SystemMessage(m.systemPrompt))
	}
	conv.Append(trimHistory(dropUnanswered(history.Messages), m.maxHistory)...)

	start := conv.Len()
	conv.Append(schema.UserMessage(query))

	out, runErr := m.runner.RunTurn(ctx, conv, opts...)

	appended := conv.Since(start)
	if err := m.conversationRepo.AddMessages(ctx, in.ConversationID, appended...); err != nil {
		logx.Error().Err(err).Str("conversation_id", in.ConversationID).Int("message_count", len(appended)).Msg("Error saving turn messages")
		if runErr == nil {
			return nil, fmt.Errorf("save turn: %w", err)
		}
	}
	if runErr != nil {
		return nil, runErr
	}
	return out, nil
}

// Reset forgets the stored conversation.
func (m *Manager) Reset(ctx context.Context, conversationID string) error {
	return m.conversationRepo.ClearHistory(ctx, conversationID)
}

// ====================== Helper function ======================

// trimHistory keeps at most max trailing messages, starting at a user message
// so no tool message loses the assistant message that requested it.
func trimHistory(messages []*schema.Message, max int) []*schema.Message {
	if max <= 0 || len(messages) <= max {
		result := make([]*schema.Message, len(messages))
		copy(result, messages)
		return result
	}
	source := messages[len(messages)-max:]
	for i, msg := range source {
		if msg.Role == schema.User {
			result := make([]*schema.Message, len(source)-i)
			copy(result, source[i:])
			return result
		}
	}
	return []*schema.Message{}
}

// dropUnanswered removes stored assistant messages whose tool calls are not
// all answered by the tool messages directly following them, together with
// those partial answers. This happens when a turn stopped on an unknown tool.
// Tool messages outside such a block are dropped too. Chat APIs reject either.
func dropUnanswered(messages []*schema.Message) []*schema.Message {
	result := make([]*schema.Message, 0, len(messages))
	for i := 0; i < len(messages); {
		msg := messages[i]
		if msg.Role == schema.Tool {
			i++
			continue
		}
		if msg.Role != schema.Assistant || len(msg.ToolCalls) == 0 {
			result = append(result, msg)
			i++
			continue
		}

		end := i + 1
		answered := map[string]bool{}
		for end < len(messages) && messages[end].Role == schema.Tool {
			answered[messages[end].ToolCallID] = true
			end++
		}
		if allAnswered(msg.ToolCalls, answered) {
			result = append(result, messages[i:end]...)
		}
		i = end
	}
	return result
}

func allAnswered(calls []schema.ToolCall, answered map[string]bool) bool {
	for _, c := range calls {
		if !answered[c.ID] {
			return false
		}
	}
	return true
}
