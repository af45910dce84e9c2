// Package bus is the in-process publish/subscribe hub carrying lifecycle
// and message events from the client adapter to fan-out and persistence.
package bus

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/chatwire/wabridge/internal/model"
)

// Kind discriminates the event union.
type Kind string

const (
	KindCode    Kind = "code"
	KindState   Kind = "state"
	KindMessage Kind = "message"
	KindAck     Kind = "ack"
)

// Event is an immutable tagged union. Exactly one payload field is set,
// matching Kind. Consumers must not mutate shared payloads.
type Event struct {
	Kind Kind
	At   time.Time

	Code    string
	State   *model.StateChange
	Message *model.Message
	Ack     *model.Ack
}

// Handler consumes one event. A handler that panics does not prevent
// delivery to handlers subscribed after it.
type Handler func(Event)

type subscription struct {
	name    string
	handler Handler
}

// Bus delivers events synchronously, per kind, in subscription order.
// Ordering is guaranteed within a kind only.
type Bus struct {
	mu   sync.RWMutex
	subs map[Kind][]subscription
	log  zerolog.Logger
}

// New returns an empty bus.
func New(log zerolog.Logger) *Bus {
	return &Bus{
		subs: make(map[Kind][]subscription),
		log:  log,
	}
}

// Subscribe registers a named handler for kind and returns its
// unsubscribe function. Names appear in dispatch failure logs.
func (b *Bus) Subscribe(kind Kind, name string, h Handler) func() {
	b.mu.Lock()
	b.subs[kind] = append(b.subs[kind], subscription{name: name, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			list := b.subs[kind]
			for i := range list {
				if list[i].name == name {
					b.subs[kind] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish delivers evt to every subscriber of its kind, in subscription
// order, on the caller's goroutine. Panics are caught at the dispatch
// boundary and logged, never propagated to the publisher.
func (b *Bus) Publish(evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.subs[evt.Kind]))
	copy(subs, b.subs[evt.Kind])
	b.mu.RUnlock()

	for _, s := range subs {
		b.dispatch(s, evt)
	}
}

func (b *Bus) dispatch(s subscription, evt Event) {
	defer func() {
		if rec := recover(); rec != nil {
			b.log.Error().
				Interface("panic", rec).
				Str("subscriber", s.name).
				Str("kind", string(evt.Kind)).
				Msg("event handler panicked")
		}
	}()
	s.handler(evt)
}
