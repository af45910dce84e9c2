package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatwire/wabridge/internal/bus"
	"github.com/chatwire/wabridge/internal/dedup"
	"github.com/chatwire/wabridge/internal/model"
	"github.com/chatwire/wabridge/internal/queue/queuetest"
	"github.com/chatwire/wabridge/internal/store/storetest"
)

const eventually = time.Second

// startPersister attaches p to b and drains its backlog for the duration
// of the test.
func startPersister(t *testing.T, p *Persister, b *bus.Bus) {
	t.Helper()
	t.Cleanup(p.Attach(b))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = p.Run(ctx) }()
}

func TestDirectPathUpserts(t *testing.T) {
	b := bus.New(zerolog.Nop())
	st := storetest.New()
	startPersister(t, NewPersister(st, nil, zerolog.Nop()), b)

	b.Publish(bus.Event{Kind: bus.KindMessage, Message: &model.Message{ID: "m1", ChatID: "c1", Timestamp: 1}})

	assert.Eventually(t, func() bool { return st.Len() == 1 }, eventually, 5*time.Millisecond)
}

func TestBufferedPathEnqueuesInsteadOfWriting(t *testing.T) {
	b := bus.New(zerolog.Nop())
	st := storetest.New()
	q := queuetest.New()
	startPersister(t, NewPersister(st, q, zerolog.Nop()), b)

	b.Publish(bus.Event{Kind: bus.KindMessage, Message: &model.Message{ID: "m1", ChatID: "c1", Timestamp: 1}})

	assert.Eventually(t, func() bool { return q.Len() == 1 }, eventually, 5*time.Millisecond)
	assert.Equal(t, 0, st.UpsertCalls, "buffered path must not write directly")
}

func TestPushFailureFallsBackToDirectWrite(t *testing.T) {
	b := bus.New(zerolog.Nop())
	st := storetest.New()
	q := queuetest.New()
	q.FailPush = errors.New("redis down")
	startPersister(t, NewPersister(st, q, zerolog.Nop()), b)

	b.Publish(bus.Event{Kind: bus.KindMessage, Message: &model.Message{ID: "m1", ChatID: "c1", Timestamp: 1}})

	assert.Eventually(t, func() bool { return st.Len() == 1 }, eventually, 5*time.Millisecond)
}

func TestNilStoreDisablesPersistence(t *testing.T) {
	b := bus.New(zerolog.Nop())
	q := queuetest.New()
	startPersister(t, NewPersister(nil, q, zerolog.Nop()), b)

	assert.NotPanics(t, func() {
		b.Publish(bus.Event{Kind: bus.KindMessage, Message: &model.Message{ID: "m1"}})
	})
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, q.Len())
}

// blockingStore parks every upsert until released, standing in for an
// unreachable backend waiting on its driver timeout.
type blockingStore struct {
	*storetest.Store
	release chan struct{}
}

func (s *blockingStore) UpsertMessage(ctx context.Context, m *model.Message) error {
	<-s.release
	return s.Store.UpsertMessage(ctx, m)
}

func TestSlowStoreDoesNotDelayEventDelivery(t *testing.T) {
	b := bus.New(zerolog.Nop())
	st := &blockingStore{Store: storetest.New(), release: make(chan struct{})}
	startPersister(t, NewPersister(st, nil, zerolog.Nop()), b)

	var states []model.ClientState
	b.Subscribe(bus.KindState, "capture", func(e bus.Event) {
		states = append(states, e.State.Stage)
	})

	in := NewIngestor(b, dedup.NewGuard(), zerolog.Nop())
	in.OnMessage(&model.Message{ID: "m1", ChatID: "c1", Timestamp: 1})
	in.OnStateChange(&model.StateChange{Stage: model.StateReady})

	// Bus delivery is synchronous, so the state event observed here means
	// the in-flight store write never stalled the publisher.
	require.Equal(t, []model.ClientState{model.StateReady}, states)
	assert.Equal(t, 0, st.Len(), "write still parked")

	close(st.release)
	assert.Eventually(t, func() bool { return st.Len() == 1 }, eventually, 5*time.Millisecond)
}

func TestBacklogOverflowDropsInsteadOfBlocking(t *testing.T) {
	b := bus.New(zerolog.Nop())
	st := &blockingStore{Store: storetest.New(), release: make(chan struct{})}
	p := NewPersister(st, nil, zerolog.Nop())
	t.Cleanup(p.Attach(b))
	// No Run goroutine: the backlog only fills.

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i <= pendingBuffer; i++ {
			b.Publish(bus.Event{Kind: bus.KindMessage, Message: &model.Message{ID: "m", ChatID: "c", Timestamp: 1}})
		}
	}()

	select {
	case <-done:
	case <-time.After(eventually):
		t.Fatal("publishing blocked on a full persistence backlog")
	}
}

func TestUpsertIdempotentAcrossPaths(t *testing.T) {
	// The same identity written once directly and once through the
	// buffer stays a single row with the final content.
	st := storetest.New()
	q := queuetest.New()

	direct := bus.New(zerolog.Nop())
	startPersister(t, NewPersister(st, nil, zerolog.Nop()), direct)
	buffered := bus.New(zerolog.Nop())
	startPersister(t, NewPersister(st, q, zerolog.Nop()), buffered)

	m := &model.Message{ID: "m1", ChatID: "c1", Body: "hello", Timestamp: 1}
	direct.Publish(bus.Event{Kind: bus.KindMessage, Message: m})
	buffered.Publish(bus.Event{Kind: bus.KindMessage, Message: m})

	// Drain the buffer the way the flusher does: pop and bulk upsert.
	require.Eventually(t, func() bool { return q.Len() == 1 }, eventually, 5*time.Millisecond)
	raw, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
	require.NoError(t, st.BulkUpsertMessages(context.Background(), []*model.Message{m}))

	assert.Eventually(t, func() bool { return st.Len() == 1 }, eventually, 5*time.Millisecond)
}

func TestEndToEndIngestToStore(t *testing.T) {
	// Full accepted path: adapter callback -> bus -> persister -> store.
	b := bus.New(zerolog.Nop())
	st := storetest.New()
	startPersister(t, NewPersister(st, nil, zerolog.Nop()), b)
	in := NewIngestor(b, dedup.NewGuard(), zerolog.Nop())

	in.OnMessage(&model.Message{ID: "m1", ChatID: "c1", Body: "oi", Timestamp: 1700000000})
	in.OnMessage(&model.Message{ID: "m1", ChatID: "c1", Body: "oi", Timestamp: 1700000000}) // redelivery
	in.OnMessage(&model.Message{ID: "m2", To: "status@broadcast"})                          // noise

	assert.Eventually(t, func() bool { return st.Len() == 1 }, eventually, 5*time.Millisecond)
	got, ok := st.Get("m1")
	require.True(t, ok)
	assert.Equal(t, int64(1700000000000), got.Timestamp)
}
