// Package store defines the persistence operations required by the
// ingestion pipeline and read-path handlers. Implementations live under
// internal/store/<driver>/ (e.g., mongo) plus an in-memory fake for tests.
package store

import (
	"context"

	"github.com/chatwire/wabridge/internal/model"
)

// Store persists message records keyed by their stable identity.
// Upserts must be idempotent: writing the same identity twice with
// identical content yields exactly one stored record.
type Store interface {
	// UpsertMessage inserts or overwrites one record by m.Key().
	UpsertMessage(ctx context.Context, m *model.Message) error

	// BulkUpsertMessages applies one unordered bulk write; one record's
	// failure must not block independent records in the same batch.
	BulkUpsertMessages(ctx context.Context, msgs []*model.Message) error

	// ListMessages returns up to limit records, newest first, optionally
	// scoped to a chat and to the last sinceDays days.
	ListMessages(ctx context.Context, chatID string, sinceDays int, limit int) ([]*model.Message, error)

	// ListChats returns per-chat summaries ordered by latest activity,
	// optionally restricted to the last sinceDays days.
	ListChats(ctx context.Context, sinceDays int) ([]*model.ChatSummary, error)

	// EnsureIndexes creates the read-path compound index and, when
	// ttlDays > 0, the expiry index on creation time.
	EnsureIndexes(ctx context.Context, ttlDays int) error

	// HealthPing reports store reachability.
	HealthPing(ctx context.Context) error

	Close(ctx context.Context) error
}
