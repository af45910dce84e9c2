// Package sse manages the set of live push-channel observers and streams
// bus events to them over long-lived HTTP responses.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chatwire/wabridge/internal/bus"
	"github.com/chatwire/wabridge/internal/session"
)

// Wire-level event names observed by clients.
const (
	EventConnected  = "connected"
	EventStatus     = "status"
	EventQR         = "qr"
	EventMessage    = "message"
	EventMessageAck = "message_ack"
	EventPing       = "ping"
)

// frameBuffer bounds the per-subscriber backlog. A subscriber that falls
// further behind starts losing frames; other subscribers are unaffected.
const frameBuffer = 64

// Config controls heartbeat cadence and the code replay freshness window.
type Config struct {
	Heartbeat  time.Duration // keep-alive interval, default 15s
	CodeWindow time.Duration // max code age replayed to late joiners, default 30s
}

// Hub fans out events to every connected subscriber, replays the session
// snapshot on join, and writes periodic keep-alives.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]*subscriber

	snap *session.Snapshot
	cfg  Config
	log  zerolog.Logger
	now  func() time.Time
}

type subscriber struct {
	id     string
	frames chan []byte
}

// NewHub constructs a hub over the given snapshot.
func NewHub(snap *session.Snapshot, cfg Config, log zerolog.Logger) *Hub {
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 15 * time.Second
	}
	if cfg.CodeWindow <= 0 {
		cfg.CodeWindow = 30 * time.Second
	}
	return &Hub{
		subs: make(map[string]*subscriber),
		snap: snap,
		cfg:  cfg,
		log:  log,
		now:  time.Now,
	}
}

// Count returns the number of live subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Broadcast encodes one frame and delivers it to every live subscriber.
// Delivery is non-blocking per subscriber: a full backlog drops the frame
// for that subscriber only.
func (h *Hub) Broadcast(event string, payload interface{}) {
	frame := encodeFrame(event, payload)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		select {
		case sub.frames <- frame:
		default:
			h.log.Debug().Str("subscriber", sub.id).Str("event", event).Msg("frame dropped, subscriber backlog full")
		}
	}
}

// Attach subscribes the hub to every event kind on b and returns a
// function detaching all of them.
func (h *Hub) Attach(b *bus.Bus) func() {
	offs := []func(){
		b.Subscribe(bus.KindState, "sse-state", func(e bus.Event) {
			h.Broadcast(EventStatus, e.State)
		}),
		b.Subscribe(bus.KindCode, "sse-code", func(e bus.Event) {
			h.Broadcast(EventQR, map[string]string{"qr": e.Code})
		}),
		b.Subscribe(bus.KindMessage, "sse-message", func(e bus.Event) {
			h.Broadcast(EventMessage, e.Message)
		}),
		b.Subscribe(bus.KindAck, "sse-ack", func(e bus.Event) {
			h.Broadcast(EventMessageAck, e.Ack)
		}),
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}

// ServeHTTP handles GET /events: registers the connection, emits the
// connected acknowledgement and snapshot replay, then streams frames and
// heartbeats until the transport closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sub := h.register()
	defer h.unregister(sub.id)

	for _, frame := range h.joinFrames() {
		if _, err := w.Write(frame); err != nil {
			return
		}
	}
	flusher.Flush()

	heartbeat := time.NewTicker(h.cfg.Heartbeat)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-sub.frames:
			if _, err := w.Write(frame); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := w.Write(encodeFrame(EventPing, h.now().UnixMilli())); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// joinFrames builds the frames written to a new subscriber before any
// live event: the connected ack, the last known state, and the last code
// when it is still within the freshness window.
func (h *Hub) joinFrames() [][]byte {
	frames := [][]byte{
		encodeFrame(EventConnected, map[string]string{"stage": "connected"}),
	}
	if st := h.snap.State(); st != nil {
		frames = append(frames, encodeFrame(EventStatus, st))
	}
	if code, at, ok := h.snap.Code(); ok && h.now().Sub(at) < h.cfg.CodeWindow {
		frames = append(frames, encodeFrame(EventQR, map[string]string{"qr": code}))
	}
	return frames
}

func (h *Hub) register() *subscriber {
	sub := &subscriber{
		id:     uuid.New().String(),
		frames: make(chan []byte, frameBuffer),
	}
	h.mu.Lock()
	h.subs[sub.id] = sub
	h.mu.Unlock()
	h.log.Debug().Str("subscriber", sub.id).Msg("sse subscriber connected")
	return sub
}

func (h *Hub) unregister(id string) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
	h.log.Debug().Str("subscriber", id).Msg("sse subscriber disconnected")
}

func encodeFrame(event string, payload interface{}) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("{}")
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event, data))
}
