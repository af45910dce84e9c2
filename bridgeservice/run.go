// Package bridgeservice wires the ingestion pipeline, push channel, and
// HTTP surface into a runnable service.
package bridgeservice

import (
	"context"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/chatwire/wabridge/internal/api"
	"github.com/chatwire/wabridge/internal/bus"
	"github.com/chatwire/wabridge/internal/config"
	"github.com/chatwire/wabridge/internal/dedup"
	"github.com/chatwire/wabridge/internal/flush"
	"github.com/chatwire/wabridge/internal/health"
	"github.com/chatwire/wabridge/internal/ingest"
	"github.com/chatwire/wabridge/internal/lifecycle"
	"github.com/chatwire/wabridge/internal/logger"
	"github.com/chatwire/wabridge/internal/media"
	"github.com/chatwire/wabridge/internal/queue"
	"github.com/chatwire/wabridge/internal/queue/redisq"
	"github.com/chatwire/wabridge/internal/session"
	"github.com/chatwire/wabridge/internal/sse"
	"github.com/chatwire/wabridge/internal/store"
	storemongo "github.com/chatwire/wabridge/internal/store/mongo"
	"github.com/chatwire/wabridge/internal/waclient"
)

// Adapter is an external client that both serves commands and feeds the
// ingestion sink with its events.
type Adapter interface {
	lifecycle.Client
	Start(ctx context.Context, sink ingest.Sink) error
}

// Run starts the bridge service HTTP server and blocks until shutdown or
// error. Missing backends degrade the service instead of failing it: the
// push channel and command path stay up without a store or buffer.
func Run() error {
	log := logger.New("wabridge")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	log.Info().
		Int("http_port", cfg.HTTPPort).
		Bool("store_configured", cfg.MongoURI != "").
		Bool("buffer_configured", cfg.BufferEnabled()).
		Bool("client_configured", cfg.ClientCmd != "").
		Msg("Bridge service starting")

	ctx, stop := newServerContext()
	defer stop()

	st := initStore(ctx, cfg, log)
	if st != nil {
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := st.Close(closeCtx); err != nil {
				log.Warn().Err(err).Msg("store close failed")
			}
		}()
	}

	q := initQueue(ctx, cfg, st, log)
	if q != nil {
		defer func() {
			if err := q.Close(); err != nil {
				log.Warn().Err(err).Msg("queue close failed")
			}
		}()
	}

	mediaStore, err := media.NewStore(cfg.MediaDir)
	if err != nil {
		log.Error().Err(err).Str("dir", cfg.MediaDir).Msg("media directory unavailable")
		return err
	}

	// Event pipeline: ingestion publishes onto the bus; the snapshot,
	// push hub, and persister consume from it.
	b := bus.New(log)
	snap := session.New()
	b.Subscribe(bus.KindState, "snapshot-state", func(e bus.Event) { snap.SetState(e.State) })
	b.Subscribe(bus.KindCode, "snapshot-code", func(e bus.Event) { snap.SetCode(e.Code, e.At) })

	hub := sse.NewHub(snap, sse.Config{
		Heartbeat:  time.Duration(cfg.HeartbeatSeconds) * time.Second,
		CodeWindow: time.Duration(cfg.CodeReplaySeconds) * time.Second,
	}, log)
	hub.Attach(b)

	persister := ingest.NewPersister(st, q, log)
	persister.Attach(b)
	go func() {
		if err := persister.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("persister stopped")
		}
	}()

	ingestor := ingest.NewIngestor(b, dedup.NewGuard(), log)

	if q != nil && st != nil {
		worker := flush.NewWorker(q, st, flush.Config{
			Interval:  cfg.FlushInterval(),
			BatchSize: cfg.FlushBatchLimit,
		}, log)
		go func() {
			if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("flush worker stopped")
			}
		}()
	}

	client := initClient(ctx, cfg, ingestor, mediaStore, log)

	monitor := lifecycle.NewMonitor(client, b, snap, lifecycle.Config{
		ReinitDelay:  time.Duration(cfg.ReinitDelaySeconds) * time.Second,
		PollInterval: time.Duration(cfg.StatePollSeconds) * time.Second,
	}, log)
	monitor.Attach(ctx)
	go func() {
		if err := monitor.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("lifecycle monitor stopped")
		}
	}()

	storeHealthy, queueStatus := startHealthCheckers(ctx, cfg, log, st, q)

	handler := api.NewHandler(snap, st, client, mediaStore, queueStatus, storeHealthy, hub.Count, log)
	router := api.NewRouter(handler, hub, mediaStore.Dir(), cfg.DashToken)

	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
			return err
		}
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Err(err).Msg("HTTP server failed")
		return err
	}
}

// initStore opens the document store. Absence or failure degrades the
// service to memory-only instead of aborting startup.
func initStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) store.Store {
	if cfg.MongoURI == "" {
		log.Warn().Msg("no store configured; history endpoints run degraded")
		return nil
	}
	st, err := storemongo.Open(ctx, cfg.MongoURI, cfg.MongoDB, cfg.MongoCollection)
	if err != nil {
		log.Warn().Err(err).Msg("store unreachable; history endpoints run degraded")
		return nil
	}
	if err := st.EnsureIndexes(ctx, cfg.MessageTTLDays); err != nil {
		log.Warn().Err(err).Msg("index setup failed; continuing")
	}
	log.Info().Str("db", cfg.MongoDB).Str("collection", cfg.MongoCollection).Msg("store connected")
	return st
}

// initQueue opens the write-behind buffer and boot-probes it. A dead or
// unconfigured buffer means direct store writes for the whole process
// lifetime.
func initQueue(ctx context.Context, cfg *config.Config, st store.Store, log zerolog.Logger) queue.Queue {
	if !cfg.BufferEnabled() {
		return nil
	}
	if st == nil {
		log.Warn().Msg("buffer configured without a store; disabling buffer")
		return nil
	}
	q, err := redisq.New(cfg.RedisURL, cfg.RedisListKey)
	if err != nil {
		log.Warn().Err(err).Msg("buffer unavailable; falling back to direct writes")
		return nil
	}
	probeCtx, cancel := context.WithTimeout(ctx, cfg.RedisBootTimeout())
	defer cancel()
	if err := q.Ping(probeCtx); err != nil {
		log.Warn().Err(err).Msg("buffer boot probe failed; falling back to direct writes")
		_ = q.Close()
		return nil
	}
	log.Info().Str("list_key", cfg.RedisListKey).Msg("write-behind buffer enabled")
	return q
}

// initClient launches the external client runner when configured and
// returns a stub otherwise.
func initClient(ctx context.Context, cfg *config.Config, sink ingest.Sink, mediaStore *media.Store, log zerolog.Logger) lifecycle.Client {
	if cfg.ClientCmd == "" {
		log.Warn().Msg("no client runner configured; send and reinit are unavailable")
		return waclient.Disabled{}
	}
	a, err := waclient.New(cfg.ClientCmd, mediaStore, log)
	if err != nil {
		log.Warn().Err(err).Msg("invalid client command; send and reinit are unavailable")
		return waclient.Disabled{}
	}
	var runner Adapter = a
	go func() {
		if err := runner.Start(ctx, sink); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("client runner exited")
		}
	}()
	return runner
}

// startHealthCheckers starts per-backend probes plus the service-level
// aggregate and returns the status callbacks used by the HTTP handlers.
func startHealthCheckers(ctx context.Context, cfg *config.Config, log zerolog.Logger, st store.Store, q queue.Queue) (func() bool, func() string) {
	probeTimeout := time.Duration(cfg.HealthProbeTimeoutSeconds) * time.Second
	interval := time.Duration(cfg.HealthIntervalSeconds) * time.Second

	var checkers []health.HealthChecker

	storeHealthy := func() bool { return false }
	if st != nil {
		storeChecker := health.NewPingChecker("store", st.HealthPing, log, probeTimeout)
		go storeChecker.Start(ctx, interval)
		checkers = append(checkers, storeChecker)
		storeHealthy = storeChecker.IsHealthy
	}

	queueStatus := func() string { return "disabled" }
	if q != nil {
		queueChecker := health.NewPingChecker("queue", q.Ping, log, probeTimeout)
		go queueChecker.Start(ctx, interval)
		checkers = append(checkers, queueChecker)
		queueStatus = func() string {
			if queueChecker.IsHealthy() {
				return q.Status()
			}
			return "unreachable"
		}
	}

	if len(checkers) > 0 {
		svcHealth := health.NewServiceHealthChecker(log, checkers...)
		go svcHealth.Start(ctx, interval)
	}
	return storeHealthy, queueStatus
}

// newHTTPServer builds the server. WriteTimeout stays zero so long-lived
// push connections are never cut by the server itself.
func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// newServerContext returns a cancellable context bound to SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
