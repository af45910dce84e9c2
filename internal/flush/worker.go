// Package flush drains the write-behind buffer into the store in
// idempotent batches.
package flush

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/chatwire/wabridge/internal/model"
	"github.com/chatwire/wabridge/internal/queue"
	"github.com/chatwire/wabridge/internal/store"
)

// Config controls batch size and flush cadence. Lower bounds match the
// original deployment knobs.
type Config struct {
	Interval  time.Duration // default 1h, floor 30s
	BatchSize int           // default 5000, floor 100
}

// Worker pops queued records on a timer and applies them to the store as
// one unordered bulk upsert per tick. The queue is the durability
// boundary: a failed tick logs and leaves the remaining items queued.
// Items already popped when a tick fails mid-flight are lost; this is the
// documented at-least-once gap inherited from the buffer design.
type Worker struct {
	queue queue.Queue
	store store.Store
	cfg   Config
	log   zerolog.Logger
}

// NewWorker constructs a Worker from dependencies.
func NewWorker(q queue.Queue, st store.Store, cfg Config, log zerolog.Logger) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Interval < 30*time.Second {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5000
	}
	if cfg.BatchSize < 100 {
		cfg.BatchSize = 100
	}
	return &Worker{queue: q, store: st, cfg: cfg, log: log}
}

// Run starts the flush loop until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info().Int("batch", w.cfg.BatchSize).Dur("interval", w.cfg.Interval).Msg("flush worker starting")
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("flush worker stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := w.FlushOnce(ctx); err != nil {
				// Log and continue; the next tick retries what is still queued.
				w.log.Error().Err(err).Msg("flush tick failed")
			}
		}
	}
}

// FlushOnce pops up to BatchSize items and applies them in one unordered
// bulk upsert. A zero-item tick is a no-op.
func (w *Worker) FlushOnce(ctx context.Context) error {
	batch, err := w.popBatch(ctx)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	if err := w.store.BulkUpsertMessages(ctx, batch); err != nil {
		return err
	}
	w.log.Info().Int("count", len(batch)).Msg("flushed buffered messages")
	return nil
}

func (w *Worker) popBatch(ctx context.Context) ([]*model.Message, error) {
	var batch []*model.Message
	for len(batch) < w.cfg.BatchSize {
		raw, err := w.queue.Pop(ctx)
		if errors.Is(err, queue.ErrEmpty) {
			break
		}
		if err != nil {
			return batch, err
		}
		var m model.Message
		if err := json.Unmarshal(raw, &m); err != nil {
			// Poison item: skip so it cannot wedge the queue head.
			w.log.Warn().Err(err).Msg("dropping undecodable buffered item")
			continue
		}
		batch = append(batch, &m)
	}
	return batch, nil
}
