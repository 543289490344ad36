package domain

import (
	"time"

	"github.com/goccy/go-json"
)

// ReplicaRecord is the consumer-owned projection of a remote entity.
//
// LastSyncAt is the CreatedUtcDate of the most-recently-applied envelope for
// this record — the conflict-resolution watermark. It never reflects an
// envelope that was skipped.
//
// Deleted records are tombstones: the row is retained with its watermark so
// that a Created/Updated envelope with an older timestamp cannot resurrect
// an entity that was deleted out of order.
type ReplicaRecord struct {
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Data       json.RawMessage `json:"data,omitempty"`
	Deleted    bool            `json:"deleted"`
	LastSyncAt time.Time       `json:"last_sync_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
