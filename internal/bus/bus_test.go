package bus

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/chatwire/wabridge/internal/model"
)

func TestPublishDeliversInSubscriptionOrder(t *testing.T) {
	b := New(zerolog.Nop())

	var order []string
	b.Subscribe(KindMessage, "first", func(Event) { order = append(order, "first") })
	b.Subscribe(KindMessage, "second", func(Event) { order = append(order, "second") })

	b.Publish(Event{Kind: KindMessage, Message: &model.Message{ID: "m1"}})

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestPublishIsolatedPerKind(t *testing.T) {
	b := New(zerolog.Nop())

	var got []Kind
	b.Subscribe(KindState, "state-only", func(e Event) { got = append(got, e.Kind) })

	b.Publish(Event{Kind: KindCode, Code: "2@A,B,C,D,E"})
	b.Publish(Event{Kind: KindState, State: &model.StateChange{Stage: model.StateReady}})

	assert.Equal(t, []Kind{KindState}, got)
}

func TestPanickingHandlerDoesNotBlockOthers(t *testing.T) {
	b := New(zerolog.Nop())

	delivered := false
	b.Subscribe(KindMessage, "bad", func(Event) { panic("boom") })
	b.Subscribe(KindMessage, "good", func(Event) { delivered = true })

	assert.NotPanics(t, func() {
		b.Publish(Event{Kind: KindMessage, Message: &model.Message{ID: "m1"}})
	})
	assert.True(t, delivered)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New(zerolog.Nop())

	n := 0
	off := b.Subscribe(KindAck, "counter", func(Event) { n++ })

	b.Publish(Event{Kind: KindAck, Ack: &model.Ack{MessageID: "m1", Level: 2}})
	off()
	off() // idempotent
	b.Publish(Event{Kind: KindAck, Ack: &model.Ack{MessageID: "m1", Level: 3}})

	assert.Equal(t, 1, n)
}

func TestPublishStampsEmissionTime(t *testing.T) {
	b := New(zerolog.Nop())

	var got Event
	b.Subscribe(KindCode, "capture", func(e Event) { got = e })
	b.Publish(Event{Kind: KindCode, Code: "2@A,B,C,D,E"})

	assert.False(t, got.At.IsZero())
}
