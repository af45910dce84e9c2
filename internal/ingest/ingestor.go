// Package ingest is the boundary between the external client adapter and
// the bus: it validates, deduplicates and publishes inbound events, and
// routes accepted messages to the buffered or direct persistence path.
package ingest

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/chatwire/wabridge/internal/bus"
	"github.com/chatwire/wabridge/internal/dedup"
	"github.com/chatwire/wabridge/internal/filter"
	"github.com/chatwire/wabridge/internal/model"
)

// Ingestor receives raw callbacks from the external client adapter. Its
// only obligation is to validate, dedupe and publish; it does not parse
// the underlying protocol.
type Ingestor struct {
	bus   *bus.Bus
	guard *dedup.Guard
	log   zerolog.Logger
	now   func() time.Time
}

// NewIngestor wires the inbound boundary.
func NewIngestor(b *bus.Bus, guard *dedup.Guard, log zerolog.Logger) *Ingestor {
	return &Ingestor{bus: b, guard: guard, log: log, now: time.Now}
}

// OnSessionCode publishes a code event when raw is a complete, scannable
// session code; malformed codes are dropped silently at the boundary.
func (in *Ingestor) OnSessionCode(raw string) {
	if !filter.ValidSessionCode(raw) {
		in.log.Debug().Msg("dropping malformed session code")
		return
	}
	in.bus.Publish(bus.Event{Kind: bus.KindCode, Code: raw})
}

// OnStateChange publishes a connection-state event.
func (in *Ingestor) OnStateChange(st *model.StateChange) {
	if st == nil {
		return
	}
	in.bus.Publish(bus.Event{Kind: bus.KindState, State: st})
}

// OnMessage filters broadcast-channel traffic, dedupes by message
// identity, normalizes the origin timestamp and stamps the local creation
// time, then publishes exactly one message event per identity.
func (in *Ingestor) OnMessage(m *model.Message) {
	if m == nil || filter.IsBroadcast(m) {
		return
	}
	if !in.guard.Observe(m.Key()) {
		in.log.Debug().Str("id", m.Key()).Msg("duplicate message skipped")
		return
	}
	m.Timestamp = model.NormalizeMillis(m.Timestamp)
	if m.Timestamp == 0 {
		m.Timestamp = in.now().UnixMilli()
	}
	m.CreatedAt = in.now().UTC()
	in.bus.Publish(bus.Event{Kind: bus.KindMessage, Message: m})
}

// OnAck publishes a delivery-acknowledgement event.
func (in *Ingestor) OnAck(id string, level int) {
	in.bus.Publish(bus.Event{Kind: bus.KindAck, Ack: &model.Ack{MessageID: id, Level: level}})
}

// OnDisconnected publishes a disconnected state event carrying the
// client-reported reason.
func (in *Ingestor) OnDisconnected(reason string) {
	in.bus.Publish(bus.Event{Kind: bus.KindState, State: &model.StateChange{
		Stage:  model.StateDisconnected,
		Reason: reason,
	}})
}
