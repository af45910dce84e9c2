package bridgeservice

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/chatwire/wabridge/internal/bus"
	"github.com/chatwire/wabridge/internal/config"
	"github.com/chatwire/wabridge/internal/dedup"
	"github.com/chatwire/wabridge/internal/ingest"
	"github.com/chatwire/wabridge/internal/store/storetest"
	"github.com/chatwire/wabridge/internal/waclient"
)

func testSink() ingest.Sink {
	return ingest.NewIngestor(bus.New(zerolog.Nop()), dedup.NewGuard(), zerolog.Nop())
}

func TestInitStoreUnconfiguredRunsDegraded(t *testing.T) {
	cfg := config.NewForTesting()
	cfg.MongoURI = ""

	st := initStore(context.Background(), cfg, zerolog.Nop())
	assert.Nil(t, st)
}

func TestInitQueueDisabledWithoutURL(t *testing.T) {
	cfg := config.NewForTesting()
	cfg.RedisURL = ""

	q := initQueue(context.Background(), cfg, storetest.New(), zerolog.Nop())
	assert.Nil(t, q)
}

func TestInitQueueRequiresStore(t *testing.T) {
	cfg := config.NewForTesting()
	cfg.RedisURL = "redis://localhost:6379"

	q := initQueue(context.Background(), cfg, nil, zerolog.Nop())
	assert.Nil(t, q)
}

func TestInitQueueBootProbeFailureFallsBack(t *testing.T) {
	cfg := config.NewForTesting()
	cfg.RedisURL = "redis://127.0.0.1:1"
	cfg.RedisBootTimeoutMillis = 100

	q := initQueue(context.Background(), cfg, storetest.New(), zerolog.Nop())
	assert.Nil(t, q, "unreachable buffer must mean direct writes")
}

func TestInitClientUnconfiguredIsStub(t *testing.T) {
	cfg := config.NewForTesting()
	cfg.ClientCmd = ""

	c := initClient(context.Background(), cfg, testSink(), nil, zerolog.Nop())
	assert.IsType(t, waclient.Disabled{}, c)

	err := c.SendMessage(context.Background(), "x@c.us", "oi")
	assert.Error(t, err)
}

func TestStartHealthCheckersDefaults(t *testing.T) {
	cfg := config.NewForTesting()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	storeHealthy, queueStatus := startHealthCheckers(ctx, cfg, zerolog.Nop(), nil, nil)
	assert.False(t, storeHealthy())
	assert.Equal(t, "disabled", queueStatus())
}
