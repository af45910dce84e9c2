package ingest

import "github.com/chatwire/wabridge/internal/model"

// Sink receives raw callbacks from an external client adapter. The
// Ingestor is the production implementation.
type Sink interface {
	OnSessionCode(raw string)
	OnStateChange(st *model.StateChange)
	OnMessage(m *model.Message)
	OnAck(id string, level int)
	OnDisconnected(reason string)
}

var _ Sink = (*Ingestor)(nil)
