// Package queuetest provides an in-memory queue.Queue for tests.
package queuetest

import (
	"context"
	"sync"

	"github.com/chatwire/wabridge/internal/queue"
)

// Queue is a FIFO slice behind a mutex. Optional error injection covers
// the unreachable-backend paths.
type Queue struct {
	mu    sync.Mutex
	items [][]byte

	FailPush error
	FailPop  error
	FailPing error
}

func New() *Queue { return &Queue{} }

func (q *Queue) Push(_ context.Context, payload []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.FailPush != nil {
		return q.FailPush
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	q.items = append(q.items, cp)
	return nil
}

func (q *Queue) Pop(context.Context) ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.FailPop != nil {
		return nil, q.FailPop
	}
	if len(q.items) == 0 {
		return nil, queue.ErrEmpty
	}
	head := q.items[0]
	q.items = q.items[1:]
	return head, nil
}

func (q *Queue) Ping(context.Context) error {
	if q.FailPing != nil {
		return q.FailPing
	}
	return nil
}

func (q *Queue) Status() string { return "ready" }
func (q *Queue) Close() error   { return nil }

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
