// Command riskengine runs the transactional risk decision service: it loads
// policy and sanctions data, recovers actor state from the last snapshot and
// write-ahead log, then serves decision requests over HTTP until signaled to
// shut down.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"riskengine/internal/actorpool"
	"riskengine/internal/config"
	"riskengine/internal/httpapi"
	"riskengine/internal/httpapi/middleware"
	"riskengine/internal/pipeline"
	"riskengine/internal/policy"
	"riskengine/internal/snapshot"
	"riskengine/internal/wal"
	"riskengine/observability"
	"riskengine/observability/logging"
	telemetry "riskengine/observability/otel"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	env := strings.TrimSpace(os.Getenv("RISKENGINE_ENV"))
	logger := logging.Setup("risk-engine", env)

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "risk-engine",
		Environment: env,
		Endpoint:    cfg.OTelEndpoint,
		Insecure:    cfg.OTelInsecure,
		Metrics:     cfg.OTelMetrics,
		Traces:      cfg.OTelTraces,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	metrics := observability.RiskEngine()

	doc, err := policy.Load(cfg.PolicyPath)
	if err != nil {
		return fmt.Errorf("load policy: %w", err)
	}
	sanctioned, err := policy.LoadSanctions(cfg.SanctionsPath)
	if err != nil {
		return fmt.Errorf("load sanctions: %w", err)
	}
	rules, err := policy.Build(doc, sanctioned)
	if err != nil {
		return fmt.Errorf("build ruleset: %w", err)
	}
	ruleChannel := policy.NewChannel(rules)

	pool := actorpool.New(cfg.ShardCount)

	now := time.Now().UTC()
	stats, err := snapshot.Recover(cfg.SnapshotPath, cfg.WALPath, rules, pool, now)
	if err != nil {
		return fmt.Errorf("recover state: %w", err)
	}
	logger.Info("recovered actor state",
		"snapshot_users", stats.SnapshotUsers,
		"wal_transactions", stats.WALTransactions,
		"wal_errors", stats.Errors,
		"total_users", stats.TotalUsers,
	)
	metrics.SetActorsLive(stats.TotalUsers)

	walWriter, err := wal.Open(cfg.WALPath)
	if err != nil {
		return fmt.Errorf("open wal: %w", err)
	}
	defer func() {
		_ = walWriter.Sync()
		_ = walWriter.Close()
	}()

	engine := &pipeline.Engine{
		Pool:          pool,
		Rules:         ruleChannel,
		WAL:           walWriter,
		Metrics:       metrics,
		Logger:        logger,
		LatencyBudget: cfg.LatencyBudget(),
	}

	rateLimiter := middleware.NewRateLimiter(map[string]middleware.RateLimit{
		"decision_check": {RatePerSecond: 200, Burst: 400},
	}, nil)

	server := &httpapi.Server{
		Engine:      engine,
		Pool:        pool,
		Rules:       ruleChannel,
		Logger:      logger,
		RateLimiter: rateLimiter,
		StartedAt:   time.Now(),
		Version:     "dev",
	}

	obs := middleware.NewObservability(middleware.ObservabilityConfig{
		ServiceName:   "risk-engine",
		MetricsPrefix: "http",
		LogRequests:   false,
		Enabled:       true,
	}, nil)
	cors := middleware.CORS(middleware.CORSConfig{})
	router := httpapi.NewRouter(server, obs, cors)
	handler := otelhttp.NewHandler(router, "risk-engine")

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go policy.Watch(stopCtx, ruleChannel, policy.WatchOptions{
		PolicyPath:     cfg.PolicyPath,
		SanctionsPath:  cfg.SanctionsPath,
		ReloadInterval: cfg.PolicyReloadInterval(),
		Logger:         logger,
		Metrics:        metrics,
	})

	go watchRulePropagation(stopCtx, ruleChannel, pool)
	go runSnapshotLoop(stopCtx, cfg, pool, walWriter, logger, metrics)
	go runEvictionLoop(stopCtx, cfg, pool, metrics)

	errs := make(chan error, 1)
	go func() {
		logger.Info("risk engine listening", "addr", cfg.ListenAddr)
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case <-stopCtx.Done():
		if !cfg.GracefulShutdown {
			return httpServer.Close()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			_ = httpServer.Close()
			return err
		}
		return nil
	case err := <-errs:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

// watchRulePropagation pushes every published ruleset into the live actor
// pool so in-flight and future lookups observe the new policy without
// waiting for an actor's next GetOrCreate.
func watchRulePropagation(ctx context.Context, ch *policy.Channel, pool *actorpool.Pool) {
	for {
		select {
		case <-ctx.Done():
			return
		case rs, ok := <-ch.Updates():
			if !ok {
				return
			}
			pool.UpdateRules(rs)
		}
	}
}

// runSnapshotLoop periodically freezes live actor state to disk and marks
// the write-ahead log with a matching checkpoint so a future restart knows
// which WAL records the snapshot already covers.
func runSnapshotLoop(ctx context.Context, cfg config.Config, pool *actorpool.Pool, w *wal.Writer, logger *slog.Logger, metrics *observability.RiskEngineMetrics) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			takeSnapshot(cfg, pool, w, logger, metrics)
		}
	}
}

func takeSnapshot(cfg config.Config, pool *actorpool.Pool, w *wal.Writer, logger *slog.Logger, metrics *observability.RiskEngineMetrics) {
	states := pool.Snapshot()
	doc := snapshot.New(states)
	path, err := snapshot.Write(cfg.SnapshotPath, doc)
	if err != nil {
		logger.Error("snapshot write failed", "error", err)
		metrics.RecordSnapshotError()
		return
	}
	if err := w.Append(wal.Checkpoint(doc.ID)); err != nil {
		logger.Error("wal checkpoint append failed", "error", err)
		metrics.RecordWALError()
	}
	if err := snapshot.Cleanup(cfg.SnapshotPath, 3); err != nil {
		logger.Error("snapshot cleanup failed", "error", err)
	}
	logger.Info("snapshot written", "path", path, "users", len(states))
}

// runEvictionLoop periodically drops actors that have gone idle longer than
// the configured threshold, bounding long-run memory growth.
func runEvictionLoop(ctx context.Context, cfg config.Config, pool *actorpool.Pool, metrics *observability.RiskEngineMetrics) {
	interval := cfg.ActorIdleThreshold() / 4
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-cfg.ActorIdleThreshold())
			evicted := pool.EvictIdle(cutoff)
			if evicted > 0 {
				metrics.SetActorsLive(pool.Stats().TotalEntries)
			}
		}
	}
}
