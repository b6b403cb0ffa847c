package model

// TurnState stores per-invocation state for the dispatch graph.
// Concurrency model:
//   - Registered as Graph Local State via compose.WithGenLocalState.
//   - All reads/writes happen inside Eino state handlers or compose.ProcessState,
//     which serialise access, so no extra locking is needed.
//   - The Conversation pointer belongs to the caller; the graph only appends.
type TurnState struct {
	Conversation *Conversation
	ToolRounds   int // completed tool batches in this turn

	// Accumulated total LLM cost (USD) across model invocations for this turn
	TotalCostUSD float64
}

// QueryInput represents one user query against a stored conversation.
type QueryInput struct {
	ConversationID string `json:"conversation_id"`
	Query          string `json:"query"`
}
