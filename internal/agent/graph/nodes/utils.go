package nodes

import (
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/chatgraph-poc/server/internal/agent/model"
)

const DefaultMaxToolRounds = 10

// normalizeMaxRounds returns a sane default when the provided value is invalid.
func normalizeMaxRounds(n int) int {
	if n <= 0 {
		return DefaultMaxToolRounds
	}
	return n
}

// startToolRound counts a new tool batch. It returns false, without counting,
// when max batches already ran in this turn.
func startToolRound(state *model.TurnState, max int) bool {
	if state.ToolRounds >= normalizeMaxRounds(max) {
		return false
	}
	state.ToolRounds++
	return true
}

// assignToolCallIDs makes every tool call ID of out unique within conv.
// Gemini reports the function name as the ID; empty, repeated or reused IDs
// get a fresh one.
func assignToolCallIDs(conv *model.Conversation, out *schema.Message) {
	if len(out.ToolCalls) == 0 {
		return
	}
	used := map[string]bool{}
	for _, m := range conv.Messages() {
		for _, c := range m.ToolCalls {
			used[c.ID] = true
		}
	}
	for i := range out.ToolCalls {
		id := strings.TrimSpace(out.ToolCalls[i].ID)
		if id == "" || used[id] {
			id = newToolCallID()
		}
		out.ToolCalls[i].ID = id
		used[id] = true
	}
}

func newToolCallID() string {
	return "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
