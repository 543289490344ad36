package domain

import (
	"time"

	"github.com/goccy/go-json"
)

// DeadLetter is a message that could not be processed: malformed, or retried
// past the configured bounds. The raw envelope is retained so an operator can
// inspect it and requeue it after fixing the underlying problem.
type DeadLetter struct {
	ID            string          `json:"id"`
	MessageID     string          `json:"message_id"`
	EntityType    string          `json:"entity_type"`
	EntityID      string          `json:"entity_id"`
	Envelope      json.RawMessage `json:"envelope"`
	TotalAttempts int             `json:"total_attempts"`
	Reason        *string         `json:"reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	ResolvedAt    *time.Time      `json:"resolved_at,omitempty"`
	ResolvedBy    *string         `json:"resolved_by,omitempty"`
}
