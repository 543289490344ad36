package domain

import "errors"

// Error taxonomy for consumer-side processing. Malformed envelopes are
// permanent failures; dependency misses are transient and retried via the
// bus's redelivery plus an explicit backoff.
var (
	ErrMalformedEnvelope = errors.New("malformed envelope")
	ErrDependencyMissing = errors.New("dependency not satisfied")
)

// Decision is the outcome of processing one envelope.
type Decision int

const (
	// DecisionAck acknowledges the message: it was applied, or it was a
	// deliberate no-op (filtered out, stale, already absent).
	DecisionAck Decision = iota
	// DecisionRequeue puts the message back on the queue with a backoff
	// delay. Used for transient failures.
	DecisionRequeue
	// DecisionDeadLetter routes the message to the dead-letter queue for
	// manual inspection. Used for permanent failures and exhausted retries.
	DecisionDeadLetter
)

func (d Decision) String() string {
	switch d {
	case DecisionAck:
		return "ack"
	case DecisionRequeue:
		return "requeue"
	case DecisionDeadLetter:
		return "dead_letter"
	}
	return "unknown"
}
