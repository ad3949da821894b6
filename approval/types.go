package approval

import (
	"errors"
	"time"

	"github.com/quailyquaily/taskwarden/risk"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
	StatusExpired  Status = "expired"
)

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool {
	switch s {
	case StatusApproved, StatusDenied, StatusExpired:
		return true
	}
	return false
}

// Request is a pending human-review decision for a task judged too risky to
// auto-execute. Owned by the Registry for its full lifetime; callers only
// ever see copies. ExpiresAt is fixed at creation and never extended.
type Request struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Assessment  risk.Assessment `json:"assessment"`

	Status Status `json:"status"`
	Notes  string `json:"notes,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

var ErrNotFound = errors.New("approval request not found")

type EventType string

const (
	EventNewRequest    EventType = "new_request"
	EventStatusChanged EventType = "status_changed"
)

// Event is what the fan-out pushes to subscribers on every state change.
type Event struct {
	Type      EventType  `json:"type"`
	RequestID string     `json:"request_id"`
	RiskLevel risk.Level `json:"risk_level"`
	Status    Status     `json:"status"`
	Summary   string     `json:"summary,omitempty"`
}
