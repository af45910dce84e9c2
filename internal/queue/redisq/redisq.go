// Package redisq implements queue.Queue on a Redis list.
package redisq

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/chatwire/wabridge/internal/queue"
)

type redisQueue struct {
	client *redis.Client
	key    string
}

// New builds a Redis-backed queue over the list at key. The URL is a
// standard redis:// or rediss:// connection string. Connectivity is not
// verified here; callers run the boot probe via Ping.
func New(url, key string) (queue.Queue, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	opts.MaxRetries = 2
	return &redisQueue{client: redis.NewClient(opts), key: key}, nil
}

func (q *redisQueue) Push(ctx context.Context, payload []byte) error {
	return q.client.RPush(ctx, q.key, payload).Err()
}

func (q *redisQueue) Pop(ctx context.Context) ([]byte, error) {
	val, err := q.client.LPop(ctx, q.key).Bytes()
	if err == redis.Nil {
		return nil, queue.ErrEmpty
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (q *redisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *redisQueue) Status() string { return "ready" }

func (q *redisQueue) Close() error { return q.client.Close() }
