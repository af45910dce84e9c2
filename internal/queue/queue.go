// Package queue defines the optional durable FIFO interposed between
// message ingestion and the store.
package queue

import (
	"context"
	"errors"
)

// ErrEmpty is returned by Pop when the queue is drained.
var ErrEmpty = errors.New("queue empty")

// Queue is a durable FIFO of serialized message records. Push appends to
// the tail; Pop removes from the head without blocking.
type Queue interface {
	Push(ctx context.Context, payload []byte) error
	// Pop returns ErrEmpty when no item is available.
	Pop(ctx context.Context) ([]byte, error)
	// Ping reports backend reachability; used by the boot probe and
	// health checks.
	Ping(ctx context.Context) error
	// Status is a short human-readable backend state for the status
	// surface ("ready", "disabled", ...).
	Status() string
	Close() error
}
