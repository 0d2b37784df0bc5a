package events

import (
	"context"
	"time"
)

// Batch is the result of a single poll.
type Batch struct {
	Events []NormalizedEvent
	// Skipped counts envelopes dropped by the skip-and-continue policy.
	Skipped int
}

// Source yields normalized events from a durable, offset-committable log.
//
// Poll blocks for at most the given timeout. Commit acknowledges every
// event returned by previous polls; uncommitted events are redelivered
// after a restart, so consumers must be idempotent.
type Source interface {
	Poll(ctx context.Context, timeout time.Duration) (Batch, error)
	Commit(ctx context.Context) error
	Close() error
}
