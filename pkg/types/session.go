package types

// Session represents one long-lived conversation surface, e.g. one open tab.
// A session hosts at most one active run at a time.
type Session struct {
	ID    string      `json:"id"`
	Title string      `json:"title"`
	Agent string      `json:"agent,omitempty"`
	Model string      `json:"model,omitempty"`
	Time  SessionTime `json:"time"`
}

// SessionTime contains timestamps for a session in Unix milliseconds.
type SessionTime struct {
	Created int64  `json:"created"`
	Updated *int64 `json:"updated,omitempty"`
}

// Run terminal statuses as persisted on iteration records and final results.
const (
	RunCompleted = "completed"
	RunFailed    = "failed"
	RunCancelled = "cancelled"
)
