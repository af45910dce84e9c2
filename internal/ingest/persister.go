package ingest

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/chatwire/wabridge/internal/bus"
	"github.com/chatwire/wabridge/internal/model"
	"github.com/chatwire/wabridge/internal/queue"
	"github.com/chatwire/wabridge/internal/store"
)

// pendingBuffer bounds the persistence backlog. When the store is slow
// enough to fill it, further records are dropped with a warning rather
// than stalling event delivery.
const pendingBuffer = 1024

// Persister subscribes to message events and writes each record either to
// the write-behind buffer (when enabled) or directly to the store. Both
// paths are keyed by the record identity and observationally equivalent
// to a store reader except for latency and batching. Errors are logged,
// never escalated; the next record retries independently.
//
// The bus handler only enqueues; all store and queue I/O happens on the
// Run goroutine so a slow backend never blocks the publisher or delays
// delivery of later events.
type Persister struct {
	store store.Store // nil when persistence is disabled
	queue queue.Queue // nil when the buffer is disabled
	log   zerolog.Logger

	pending chan *model.Message
}

// NewPersister builds the persistence subscriber. Either dependency may
// be nil: a nil queue selects the direct path, a nil store disables
// persistence entirely (degraded mode).
func NewPersister(st store.Store, q queue.Queue, log zerolog.Logger) *Persister {
	return &Persister{
		store:   st,
		queue:   q,
		log:     log,
		pending: make(chan *model.Message, pendingBuffer),
	}
}

// Attach registers the persister on the bus and returns its unsubscribe
// function. The handler never blocks: it hands the record to the Run
// goroutine, dropping it when the backlog is full.
func (p *Persister) Attach(b *bus.Bus) func() {
	return b.Subscribe(bus.KindMessage, "persist", func(e bus.Event) {
		if e.Message == nil || p.store == nil {
			return
		}
		select {
		case p.pending <- e.Message:
		default:
			p.log.Warn().Str("id", e.Message.Key()).Msg("persistence backlog full, dropping record")
		}
	})
}

// Run drains the backlog until ctx is canceled.
func (p *Persister) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m := <-p.pending:
			p.persist(ctx, m)
		}
	}
}

func (p *Persister) persist(ctx context.Context, m *model.Message) {
	if p.queue != nil {
		raw, err := json.Marshal(m)
		if err != nil {
			p.log.Error().Err(err).Str("id", m.Key()).Msg("marshal for buffer failed")
			return
		}
		err = p.queue.Push(ctx, raw)
		if err == nil {
			return
		}
		// Buffer unreachable for this record: fall through to the direct
		// path rather than dropping it.
		p.log.Warn().Err(err).Str("id", m.Key()).Msg("buffer push failed, writing directly")
	}

	if err := p.store.UpsertMessage(ctx, m); err != nil {
		p.log.Warn().Err(err).Str("id", m.Key()).Msg("message upsert failed")
	}
}
