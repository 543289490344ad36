package engine

import (
	"github.com/Priya8975/entity-sync/internal/domain"
)

// Resolution is the conflict resolver's verdict on an incoming envelope.
type Resolution int

const (
	// ResolutionApply means the envelope supersedes the current replica
	// state and its mutation should be performed.
	ResolutionApply Resolution = iota
	// ResolutionSkip means the envelope is stale or a duplicate: its
	// CreatedUtcDate is not strictly newer than the watermark already
	// applied. Skipped envelopes are acknowledged, not retried.
	ResolutionSkip
)

func (r Resolution) String() string {
	if r == ResolutionApply {
		return "apply"
	}
	return "skip"
}

// Resolve decides whether an envelope supersedes the current replica record.
//
// The rule is a single total ordering on CreatedUtcDate: an envelope applies
// if no record exists yet, or if its timestamp is strictly newer than the
// record's watermark. Ties skip — a redelivered duplicate carries the exact
// timestamp already applied, so "not newer" keeps application idempotent.
//
// Deletes are compared symmetrically. A Deleted envelope older than the
// applied watermark is itself stale and skips; one that applies leaves a
// tombstone carrying its timestamp, and a tombstone behaves like any other
// record here, so only strictly newer Created/Updated envelopes resurrect
// the entity. This is what makes the final state independent of delivery
// order.
//
// This function is the pure form of the rule. The replica stores enforce the
// same comparison inside their conditional write, which is the authoritative
// check under concurrency; resolving first lets the consumer skip stale
// messages without a write and name the decision in logs.
func Resolve(env *domain.Envelope, current *domain.ReplicaRecord) Resolution {
	if current == nil {
		return ResolutionApply
	}
	if env.CreatedUtcDate.After(current.LastSyncAt) {
		return ResolutionApply
	}
	return ResolutionSkip
}
