// Package lifecycle tracks the external messaging client's connection
// state, schedules reinitialization after disconnects, and polls state as
// a safety net against missed transition events.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/chatwire/wabridge/internal/bus"
	"github.com/chatwire/wabridge/internal/model"
	"github.com/chatwire/wabridge/internal/session"
)

// Client is the black-box external messaging client. Authentication,
// encryption and the wire protocol live behind this interface.
type Client interface {
	// State reports the client's current coarse-grained state.
	State(ctx context.Context) (model.ClientState, error)
	// Initialize (re)starts the client session.
	Initialize(ctx context.Context) error
	// SendMessage sends an outbound message; a failure is returned
	// synchronously to the caller, independent of the event pipeline.
	SendMessage(ctx context.Context, to, body string) error
}

// Config controls reinitialization delay and the state poll cadence.
type Config struct {
	ReinitDelay  time.Duration // default 5s
	PollInterval time.Duration // default 45s
}

// Monitor observes state events on the bus and drives the client's
// reinitialization. Reinit outcomes are published back onto the bus as
// state events so transitions stay observable.
type Monitor struct {
	client Client
	bus    *bus.Bus
	snap   *session.Snapshot
	cfg    Config
	log    zerolog.Logger

	mu      sync.Mutex
	pending *time.Timer
	failed  bool
}

// NewMonitor constructs a monitor; Attach and Run start it.
func NewMonitor(c Client, b *bus.Bus, snap *session.Snapshot, cfg Config, log zerolog.Logger) *Monitor {
	if cfg.ReinitDelay <= 0 {
		cfg.ReinitDelay = 5 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 45 * time.Second
	}
	return &Monitor{client: c, bus: b, snap: snap, cfg: cfg, log: log}
}

// Attach subscribes the monitor to state events and returns the
// unsubscribe function.
func (m *Monitor) Attach(ctx context.Context) func() {
	return m.bus.Subscribe(bus.KindState, "lifecycle", func(e bus.Event) {
		if e.State == nil {
			return
		}
		switch e.State.Stage {
		case model.StateDisconnected:
			m.scheduleReinit(ctx, e.State.Reason)
		case model.StateReady:
			// A session code is meaningless once authenticated.
			m.snap.ClearCode()
			m.setFailed(false)
		}
	})
}

// Run polls the client's reported state on a fixed interval until ctx is
// canceled. Poll errors are swallowed; only obtained values are
// published.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()
	defer m.cancelPending()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			st, err := m.client.State(ctx)
			if err != nil {
				m.log.Debug().Err(err).Msg("state poll failed")
				continue
			}
			m.bus.Publish(bus.Event{Kind: bus.KindState, State: &model.StateChange{Stage: st}})
		}
	}
}

// Failed reports whether the last reinitialization attempt failed and no
// recovery event has arrived since.
func (m *Monitor) Failed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failed
}

// scheduleReinit arms a one-shot reinitialization after the configured
// delay. A pending attempt is never doubled up.
func (m *Monitor) scheduleReinit(ctx context.Context, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending != nil {
		return
	}
	m.log.Warn().Str("reason", reason).Dur("delay", m.cfg.ReinitDelay).Msg("client disconnected, scheduling reinit")
	m.pending = time.AfterFunc(m.cfg.ReinitDelay, func() { m.reinit(ctx) })
}

func (m *Monitor) reinit(ctx context.Context) {
	m.mu.Lock()
	m.pending = nil
	m.mu.Unlock()

	if err := m.client.Initialize(ctx); err != nil {
		// No tight retry loop: stay failed until the next disconnect or
		// readiness event arrives from outside.
		m.log.Error().Err(err).Msg("client reinitialization failed")
		m.setFailed(true)
		m.bus.Publish(bus.Event{Kind: bus.KindState, State: &model.StateChange{
			Stage: model.StateError,
			Error: err.Error(),
		}})
		return
	}
	m.bus.Publish(bus.Event{Kind: bus.KindState, State: &model.StateChange{
		Stage: model.StateInitializing,
	}})
}

func (m *Monitor) setFailed(v bool) {
	m.mu.Lock()
	m.failed = v
	m.mu.Unlock()
}

func (m *Monitor) cancelPending() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending != nil {
		m.pending.Stop()
		m.pending = nil
	}
}
