// Package domain defines the core domain models for negarena.
package domain

// SessionKind distinguishes a single negotiation from a tournament.
type SessionKind string

const (
	SessionKindNegotiation SessionKind = "negotiation"
	SessionKindTournament  SessionKind = "tournament"
)

// SessionStatus represents the lifecycle status of a session.
type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "PENDING"
	SessionStatusRunning   SessionStatus = "RUNNING"
	SessionStatusPaused    SessionStatus = "PAUSED"
	SessionStatusCompleted SessionStatus = "COMPLETED"
	SessionStatusFailed    SessionStatus = "FAILED"
	SessionStatusCancelled SessionStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition is possible from s.
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionStatusCompleted, SessionStatusFailed, SessionStatusCancelled:
		return true
	}
	return false
}

// EventKind represents the type of a log event.
type EventKind string

const (
	EventKindOffer         EventKind = "offer"
	EventKindCellCompleted EventKind = "cell_completed"
)

// Outcome classifies how a single pairwise tournament run ended.
type Outcome string

const (
	OutcomeAgreement Outcome = "agreement"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeError     Outcome = "error"
)

// CellStatus is the derived display status of a tournament cell.
type CellStatus string

const (
	CellStatusPending  CellStatus = "PENDING"
	CellStatusRunning  CellStatus = "RUNNING"
	CellStatusComplete CellStatus = "COMPLETE"
	CellStatusTimeout  CellStatus = "TIMEOUT"
	CellStatusError    CellStatus = "ERROR"
)

// EndReason explains why a negotiation stopped.
type EndReason string

const (
	EndReasonAgreement  EndReason = "agreement"
	EndReasonTimeout    EndReason = "timeout"
	EndReasonExhausted  EndReason = "exhausted"
	EndReasonTournament EndReason = "tournament_done"
)
