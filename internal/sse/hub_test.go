package sse

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatwire/wabridge/internal/bus"
	"github.com/chatwire/wabridge/internal/model"
	"github.com/chatwire/wabridge/internal/session"
)

func newTestHub(snap *session.Snapshot) *Hub {
	return NewHub(snap, Config{}, zerolog.Nop())
}

func recvFrame(t *testing.T, sub *subscriber) string {
	t.Helper()
	select {
	case frame := <-sub.frames:
		return string(frame)
	case <-time.After(time.Second):
		t.Fatal("no frame received")
		return ""
	}
}

func TestBroadcastReachesAllSubscribers(t *testing.T) {
	h := newTestHub(session.New())
	a := h.register()
	b := h.register()
	defer h.unregister(a.id)
	defer h.unregister(b.id)

	h.Broadcast(EventStatus, &model.StateChange{Stage: model.StateReady})

	for _, sub := range []*subscriber{a, b} {
		frame := recvFrame(t, sub)
		assert.Contains(t, frame, "event: status\n")
		assert.Contains(t, frame, `"stage":"ready"`)
	}
}

func TestBroadcastIsolatesStuckSubscriber(t *testing.T) {
	h := newTestHub(session.New())
	stuck := h.register()
	healthy := h.register()
	defer h.unregister(stuck.id)
	defer h.unregister(healthy.id)

	// Simulate a subscriber whose transport stopped draining.
	for i := 0; i < frameBuffer; i++ {
		stuck.frames <- []byte("x")
	}

	h.Broadcast(EventMessage, &model.Message{ID: "m1", Body: "hello"})

	frame := recvFrame(t, healthy)
	assert.Contains(t, frame, "event: message\n")
	assert.Contains(t, frame, `"id":"m1"`)
}

func TestJoinFramesReplayLateCode(t *testing.T) {
	snap := session.New()
	now := time.Now()
	snap.SetState(&model.StateChange{Stage: model.StateInitializing})

	h := newTestHub(snap)
	h.now = func() time.Time { return now }

	// A 10-second-old code is replayed.
	snap.SetCode("2@A,B,C,D,E", now.Add(-10*time.Second))
	frames := h.joinFrames()
	require.Len(t, frames, 3)
	assert.Contains(t, string(frames[0]), "event: connected\n")
	assert.Contains(t, string(frames[1]), "event: status\n")
	assert.Contains(t, string(frames[2]), "event: qr\n")

	// A 35-second-old code is not.
	snap.SetCode("2@A,B,C,D,E", now.Add(-35*time.Second))
	frames = h.joinFrames()
	require.Len(t, frames, 2)
	for _, f := range frames {
		assert.NotContains(t, string(f), "event: qr\n")
	}
}

func TestJoinFramesEmptySnapshot(t *testing.T) {
	h := newTestHub(session.New())

	frames := h.joinFrames()
	require.Len(t, frames, 1)
	assert.Contains(t, string(frames[0]), "event: connected\n")
}

func TestUnregisterRemovesSubscriber(t *testing.T) {
	h := newTestHub(session.New())
	sub := h.register()
	assert.Equal(t, 1, h.Count())

	h.unregister(sub.id)
	assert.Equal(t, 0, h.Count())

	// No delivery after teardown.
	h.Broadcast(EventStatus, &model.StateChange{Stage: model.StateReady})
	select {
	case <-sub.frames:
		t.Fatal("frame delivered after unregister")
	default:
	}
}

func TestAttachBridgesBusKinds(t *testing.T) {
	h := newTestHub(session.New())
	sub := h.register()
	defer h.unregister(sub.id)

	b := bus.New(zerolog.Nop())
	off := h.Attach(b)
	defer off()

	b.Publish(bus.Event{Kind: bus.KindCode, Code: "2@A,B,C,D,E"})
	assert.Contains(t, recvFrame(t, sub), "event: qr\n")

	b.Publish(bus.Event{Kind: bus.KindAck, Ack: &model.Ack{MessageID: "m1", Level: 3}})
	frame := recvFrame(t, sub)
	assert.Contains(t, frame, "event: message_ack\n")
	assert.Contains(t, frame, `"ack":3`)
}

func TestServeHTTPStreamsFrames(t *testing.T) {
	snap := session.New()
	snap.SetState(&model.StateChange{Stage: model.StateReady})
	h := NewHub(snap, Config{Heartbeat: 20 * time.Millisecond}, zerolog.Nop())

	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, "text/event-stream; charset=utf-8", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	var events []string
	for len(events) < 3 {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "event: ") {
			events = append(events, strings.TrimSpace(strings.TrimPrefix(line, "event: ")))
		}
	}

	// connected ack, state replay, then at least one heartbeat
	assert.Equal(t, EventConnected, events[0])
	assert.Equal(t, EventStatus, events[1])
	assert.Equal(t, EventPing, events[2])
}
