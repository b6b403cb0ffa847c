package model

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"
)

type ConversationRepository interface {
	// AddMessages appends messages to the conversation history in order
	AddMessages(ctx context.Context, conversationID string, messages ...*schema.Message) error

	// LoadHistory retrieves the conversation history for a conversation
	LoadHistory(ctx context.Context, conversationID string) (*ConversationHistory, error)

	// ClearHistory removes all conversation history for a conversation
	ClearHistory(ctx context.Context, conversationID string) error

	// GetMessageCount returns the number of messages in the conversation
	GetMessageCount(ctx context.Context, conversationID string) (int, error)
}

// ConversationHistory represents loaded conversation data with metadata.
type ConversationHistory struct {
	ConversationID string
	Messages       []*schema.Message
}

// Conversation is the ordered message sequence a turn operates on. It is
// owned by the caller between turns; during a turn only the dispatch graph
// appends to it, one message at a time.
type Conversation struct {
	ID       string
	messages []*schema.Message
}

// NewConversation creates a conversation seeded with msgs.
func NewConversation(id string, msgs ...*schema.Message) *Conversation {
	c := &Conversation{ID: id, messages: make([]*schema.Message, 0, len(msgs)+4)}
	c.messages = append(c.messages, msgs...)
	return c
}

// Append adds messages to the end of the conversation. Nil messages are ignored.
func (c *Conversation) Append(msgs ...*schema.Message) {
	for _, m := range msgs {
		if m != nil {
			c.messages = append(c.messages, m)
		}
	}
}

// Messages returns a copy of the message slice. The messages themselves are shared.
func (c *Conversation) Messages() []*schema.Message {
	out := make([]*schema.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// Last returns the most recent message, or nil.
func (c *Conversation) Last() *schema.Message {
	if len(c.messages) == 0 {
		return nil
	}
	return c.messages[len(c.messages)-1]
}

// Since returns the messages appended at or after index i.
func (c *Conversation) Since(i int) []*schema.Message {
	if i < 0 {
		i = 0
	}
	if i >= len(c.messages) {
		return nil
	}
	out := make([]*schema.Message, len(c.messages)-i)
	copy(out, c.messages[i:])
	return out
}

// HasUserMessage reports whether any message has the user role.
func (c *Conversation) HasUserMessage() bool {
	for _, m := range c.messages {
		if m.Role == schema.User {
			return true
		}
	}
	return false
}

// LastUserContent returns the content of the most recent user message.
func (c *Conversation) LastUserContent() string {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == schema.User {
			return c.messages[i].Content
		}
	}
	return ""
}

// Validate checks that every tool message answers a tool call made by an
// earlier assistant message.
func (c *Conversation) Validate() error {
	pending := map[string]bool{}
	for i, m := range c.messages {
		switch m.Role {
		case schema.Assistant:
			for _, tc := range m.ToolCalls {
				if tc.ID != "" {
					pending[tc.ID] = true
				}
			}
		case schema.Tool:
			if m.ToolCallID == "" {
				return fmt.Errorf("message %d: tool message without tool_call_id", i)
			}
			if !pending[m.ToolCallID] {
				return fmt.Errorf("message %d: tool_call_id %q has no preceding tool call", i, m.ToolCallID)
			}
		case schema.User, schema.System:
		default:
			return fmt.Errorf("message %d: unsupported role %q", i, m.Role)
		}
	}
	return nil
}
