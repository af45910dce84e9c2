// Package storetest provides an in-memory store.Store for tests.
package storetest

import (
	"context"
	"sort"
	"sync"

	"github.com/chatwire/wabridge/internal/model"
)

// Store keeps records in a map keyed by message identity, so repeated
// upserts of the same identity stay a single row, mirroring the real
// store's idempotency contract.
type Store struct {
	mu   sync.Mutex
	rows map[string]*model.Message

	// FailUpserts makes every write return the given error, for
	// exercising the transient-failure paths.
	FailUpserts error

	// UpsertCalls counts individual and bulk write invocations.
	UpsertCalls int
	BulkCalls   int
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{rows: make(map[string]*model.Message)}
}

func (s *Store) UpsertMessage(_ context.Context, m *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UpsertCalls++
	if s.FailUpserts != nil {
		return s.FailUpserts
	}
	cp := *m
	s.rows[m.Key()] = &cp
	return nil
}

func (s *Store) BulkUpsertMessages(_ context.Context, msgs []*model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.BulkCalls++
	if s.FailUpserts != nil {
		return s.FailUpserts
	}
	for _, m := range msgs {
		cp := *m
		s.rows[m.Key()] = &cp
	}
	return nil
}

func (s *Store) ListMessages(_ context.Context, chatID string, _ int, limit int) ([]*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Message
	for _, m := range s.rows {
		if chatID != "" && m.ChatID != chatID {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListChats(_ context.Context, _ int) ([]*model.ChatSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	latest := make(map[string]*model.Message)
	for _, m := range s.rows {
		if cur, ok := latest[m.ChatID]; !ok || m.Timestamp > cur.Timestamp {
			latest[m.ChatID] = m
		}
	}
	var out []*model.ChatSummary
	for _, m := range latest {
		out = append(out, &model.ChatSummary{
			ChatID:   m.ChatID,
			LastTs:   m.Timestamp,
			LastBody: m.Body,
			ChatName: m.ChatName,
			IsGroup:  m.IsGroup,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastTs > out[j].LastTs })
	return out, nil
}

func (s *Store) EnsureIndexes(context.Context, int) error { return nil }
func (s *Store) HealthPing(context.Context) error         { return nil }
func (s *Store) Close(context.Context) error              { return nil }

// Len returns the number of distinct stored identities.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// Get returns the stored record for key, if any.
func (s *Store) Get(key string) (*model.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[key]
	return m, ok
}
