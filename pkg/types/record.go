package types

// MessageRecord is one persisted conversation message. IDs are ULIDs, so
// lexicographic order is creation order.
type MessageRecord struct {
	ID        string  `json:"id"`
	SessionID string  `json:"sessionID"`
	Message   Message `json:"message"`
	Created   int64   `json:"created"`
}

// IterationRecord is the append-only persistence snapshot of one
// request/response cycle within a run.
type IterationRecord struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionID"`
	RequestID string `json:"requestID"`
	Iteration int    `json:"iteration"`

	Model        string     `json:"model,omitempty"`
	Provider     string     `json:"provider,omitempty"`
	FinishReason string     `json:"finishReason,omitempty"`
	ToolCalls    []ToolCall `json:"toolCalls,omitempty"`
	Usage        *Usage     `json:"usage,omitempty"`

	// Latency in milliseconds.
	TimeToFirstEvent int64 `json:"timeToFirstEvent"`
	TotalDuration    int64 `json:"totalDuration"`

	Status string `json:"status"` // "completed" | "failed" | "cancelled"
	Error  string `json:"error,omitempty"`

	Created int64 `json:"created"`
}
