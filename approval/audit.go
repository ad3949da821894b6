package approval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/quailyquaily/taskwarden/risk"
)

// AuditEvent is one line in the approval audit trail. Descriptions are
// redacted before they leave the registry.
type AuditEvent struct {
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"ts"`

	RequestID string `json:"request_id"`
	Status    Status `json:"status"`

	RiskLevel  risk.Level `json:"risk_level"`
	RiskWeight float64    `json:"risk_weight"`
	Factors    []string   `json:"factors,omitempty"`

	SummaryRedacted string `json:"summary_redacted"`
	Notes           string `json:"notes,omitempty"`
}

type AuditSink interface {
	Emit(ctx context.Context, e AuditEvent) error
}

func auditEventFor(req Request) AuditEvent {
	now := time.Now().UTC()
	return AuditEvent{
		EventID:         newEventID(req.ID, string(req.Status), now),
		Timestamp:       now,
		RequestID:       req.ID,
		Status:          req.Status,
		RiskLevel:       req.Assessment.Level,
		RiskWeight:      req.Assessment.Weight,
		Factors:         req.Assessment.Factors,
		SummaryRedacted: Summarize(req.Description),
		Notes:           req.Notes,
	}
}

func newEventID(requestID, status string, ts time.Time) string {
	seed := fmt.Sprintf("%s|%s|%s", requestID, status, ts.Format(time.RFC3339Nano))
	sum := sha256.Sum256([]byte(seed))
	return "evt_" + hex.EncodeToString(sum[:8])
}
