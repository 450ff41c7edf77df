package domain

// StartSessionResponse is returned when a session is created.
type StartSessionResponse struct {
	ID     string        `json:"id"`
	Kind   SessionKind   `json:"kind"`
	Status SessionStatus `json:"status"`
}

// ControlResponse is returned by pause, resume and cancel.
type ControlResponse struct {
	OK     bool          `json:"ok"`
	ID     string        `json:"id"`
	Status SessionStatus `json:"status"`
}

// ListSessionsResponse represents the response for listing sessions.
type ListSessionsResponse struct {
	Sessions []SessionSummary `json:"sessions"`
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Stream frame types.
const (
	StreamFrameSnapshot = "snapshot"
	StreamFrameError    = "error"
)

// StreamFrame is one message of the push stream.
type StreamFrame struct {
	Type     string    `json:"type"`
	Snapshot *Snapshot `json:"snapshot,omitempty"`
	Error    string    `json:"error,omitempty"`
}
