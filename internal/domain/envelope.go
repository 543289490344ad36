package domain

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// CrudAction identifies the kind of source-side mutation an envelope carries.
type CrudAction string

const (
	ActionCreated CrudAction = "Created"
	ActionUpdated CrudAction = "Updated"
	ActionDeleted CrudAction = "Deleted"
)

// Valid reports whether the action is one of the three known values.
func (a CrudAction) Valid() bool {
	switch a {
	case ActionCreated, ActionUpdated, ActionDeleted:
		return true
	}
	return false
}

// Envelope is the wire message published by a producer after a local commit
// and applied by consumers to their replica stores. CreatedUtcDate, not
// delivery order, is authoritative for sequencing: the bus may redeliver and
// reorder, so consumers compare this timestamp against the replica watermark.
type Envelope struct {
	MessageID      string          `json:"messageId"`
	EntityType     string          `json:"entityType"`
	EntityID       string          `json:"entityId"`
	CrudAction     CrudAction      `json:"crudAction"`
	EntityData     json.RawMessage `json:"entityData,omitempty"`
	CreatedUtcDate time.Time       `json:"createdUtcDate"`
	RoutingKey     string          `json:"routingKey,omitempty"`
}

// Validate checks the structural invariants of an envelope. A failure here
// is permanent: the message can never be applied and goes to the dead-letter
// queue without retry.
func (e *Envelope) Validate() error {
	if e.EntityType == "" {
		return fmt.Errorf("%w: missing entityType", ErrMalformedEnvelope)
	}
	if e.EntityID == "" {
		return fmt.Errorf("%w: missing entityId", ErrMalformedEnvelope)
	}
	if !e.CrudAction.Valid() {
		return fmt.Errorf("%w: unknown crudAction %q", ErrMalformedEnvelope, e.CrudAction)
	}
	if e.CreatedUtcDate.IsZero() {
		return fmt.Errorf("%w: missing createdUtcDate", ErrMalformedEnvelope)
	}
	return nil
}
