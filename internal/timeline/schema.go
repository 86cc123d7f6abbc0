package timeline

import "time"

// Exchange statuses.
const (
	StatusReplied = "replied"
	StatusFailed  = "failed"
)

// Exchange represents one relayed message: the user's inbound text and
// the reply that was delivered for it.
type Exchange struct {
	ID             int64     `json:"id"`
	TraceID        string    `json:"trace_id"`
	UserID         string    `json:"user_id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	ContentIn      string    `json:"content_in"`
	ContentOut     string    `json:"content_out,omitempty"`
	Status         string    `json:"status"`
	ErrorText      string    `json:"error_text,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Counts aggregates exchange outcomes for the status endpoint.
type Counts struct {
	Total   int `json:"total"`
	Replied int `json:"replied"`
	Failed  int `json:"failed"`
}

// Schema is the exchange log DDL, applied on open.
const Schema = `
CREATE TABLE IF NOT EXISTS exchanges (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	trace_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	conversation_id TEXT,
	content_in TEXT,
	content_out TEXT,
	status TEXT NOT NULL,
	error_text TEXT,
	timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_exchanges_user ON exchanges(user_id);
CREATE INDEX IF NOT EXISTS idx_exchanges_trace ON exchanges(trace_id);
CREATE INDEX IF NOT EXISTS idx_exchanges_time ON exchanges(timestamp);
`
