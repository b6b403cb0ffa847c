package repo

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/chatgraph-poc/server/internal/agent/model"
)

// MemoryConversationRepository keeps conversations in process memory for the
// lifetime of the process.
type MemoryConversationRepository struct {
	mu            sync.RWMutex
	conversations map[string][]*schema.Message
}

func NewMemoryConversationRepository() *MemoryConversationRepository {
	return &MemoryConversationRepository{conversations: map[string][]*schema.Message{}}
}

func (r *MemoryConversationRepository) AddMessages(_ context.Context, conversationID string, messages ...*schema.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range messages {
		if m != nil {
			r.conversations[conversationID] = append(r.conversations[conversationID], m)
		}
	}
	return nil
}

func (r *MemoryConversationRepository) LoadHistory(_ context.Context, conversationID string) (*model.ConversationHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored := r.conversations[conversationID]
	msgs := make([]*schema.Message, len(stored))
	copy(msgs, stored)
	return &model.ConversationHistory{ConversationID: conversationID, Messages: msgs}, nil
}

func (r *MemoryConversationRepository) ClearHistory(_ context.Context, conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conversations, conversationID)
	return nil
}

func (r *MemoryConversationRepository) GetMessageCount(_ context.Context, conversationID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conversations[conversationID]), nil
}

var _ model.ConversationRepository = (*MemoryConversationRepository)(nil)
