// Package config parses the risk engine's CLI flags into a validated,
// defaulted runtime configuration.
package config

import (
	"flag"
	"fmt"
	"time"
)

// Config captures every externally-tunable knob named as API surface.
type Config struct {
	ListenAddr          string
	PolicyPath          string
	SanctionsPath       string
	WALPath             string
	SnapshotPath        string
	PolicyReloadSecs    int
	LatencyBudgetMS     int
	ShardCount          int
	ActorIdleSecs       int
	GracefulShutdown    bool
	ShutdownTimeoutSecs int
	LogLevel            string

	OTelEndpoint string
	OTelInsecure bool
	OTelTraces   bool
	OTelMetrics  bool
}

// PolicyReloadInterval is PolicyReloadSecs as a time.Duration.
func (c Config) PolicyReloadInterval() time.Duration {
	return time.Duration(c.PolicyReloadSecs) * time.Second
}

// LatencyBudget is LatencyBudgetMS as a time.Duration.
func (c Config) LatencyBudget() time.Duration {
	return time.Duration(c.LatencyBudgetMS) * time.Millisecond
}

// ActorIdleThreshold is ActorIdleSecs as a time.Duration.
func (c Config) ActorIdleThreshold() time.Duration {
	return time.Duration(c.ActorIdleSecs) * time.Second
}

// ShutdownTimeout is ShutdownTimeoutSecs as a time.Duration.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSecs) * time.Second
}

// Parse builds a Config from CLI flags, applying the spec-default values
// before validating the combination.
func Parse(args []string) (Config, error) {
	fs := flag.NewFlagSet("riskengine", flag.ContinueOnError)

	cfg := Config{}
	fs.StringVar(&cfg.ListenAddr, "listen-addr", ":8080", "HTTP listen address")
	fs.StringVar(&cfg.PolicyPath, "policy-path", "", "path to the policy YAML document")
	fs.StringVar(&cfg.SanctionsPath, "sanctions-path", "", "path to the sanctions address list")
	fs.StringVar(&cfg.WALPath, "wal-path", "", "path to the write-ahead log file")
	fs.StringVar(&cfg.SnapshotPath, "snapshot-path", "", "directory for periodic snapshots")
	fs.IntVar(&cfg.PolicyReloadSecs, "policy-reload-secs", 30, "policy reload poll interval in seconds")
	fs.IntVar(&cfg.LatencyBudgetMS, "latency-budget-ms", 100, "advisory per-decision latency budget in milliseconds")
	fs.IntVar(&cfg.ShardCount, "shard-count", 64, "number of actor pool shards")
	fs.IntVar(&cfg.ActorIdleSecs, "actor-idle-secs", 3600, "idle threshold before an actor is evicted")
	fs.BoolVar(&cfg.GracefulShutdown, "graceful-shutdown", true, "drain in-flight requests on shutdown")
	fs.IntVar(&cfg.ShutdownTimeoutSecs, "shutdown-timeout-secs", 10, "maximum seconds to wait for in-flight requests on shutdown")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "structured logging level")
	fs.StringVar(&cfg.OTelEndpoint, "otel-endpoint", "", "OTLP HTTP collector endpoint; empty means localhost:4318 (export is enabled by --otel-traces and --otel-metrics)")
	fs.BoolVar(&cfg.OTelInsecure, "otel-insecure", true, "use an insecure OTLP connection")
	fs.BoolVar(&cfg.OTelTraces, "otel-traces", false, "export traces via OTLP")
	fs.BoolVar(&cfg.OTelMetrics, "otel-metrics", false, "export metrics via OTLP")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.PolicyPath == "" {
		return fmt.Errorf("config: policy-path is required")
	}
	if c.ShardCount <= 0 || (c.ShardCount&(c.ShardCount-1)) != 0 {
		return fmt.Errorf("config: shard-count must be a positive power of two, got %d", c.ShardCount)
	}
	if c.PolicyReloadSecs <= 0 {
		return fmt.Errorf("config: policy-reload-secs must be positive")
	}
	if c.ShutdownTimeoutSecs <= 0 {
		return fmt.Errorf("config: shutdown-timeout-secs must be positive")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log-level %q", c.LogLevel)
	}
	return nil
}
