package policy

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"riskengine/internal/domain"
	"riskengine/observability"
)

// Channel holds the currently published RuleSet and lets callers observe
// each new publication without racing the watcher goroutine. Latest always
// returns immediately; the Updates channel is never closed.
type Channel struct {
	current atomic.Pointer[domain.RuleSet]
	updates chan *domain.RuleSet
}

// NewChannel constructs a channel pre-seeded with an initial ruleset.
func NewChannel(initial *domain.RuleSet) *Channel {
	c := &Channel{updates: make(chan *domain.RuleSet, 1)}
	c.current.Store(initial)
	return c
}

// Latest returns the most recently published RuleSet. Safe for concurrent use.
func (c *Channel) Latest() *domain.RuleSet {
	return c.current.Load()
}

// Updates yields RuleSets published after the subscriber started
// listening. The buffer is 1 and non-blocking sends drop a stale
// notification in favor of the newest one; Latest() is always authoritative.
func (c *Channel) Updates() <-chan *domain.RuleSet {
	return c.updates
}

func (c *Channel) publish(rs *domain.RuleSet) {
	c.current.Store(rs)
	select {
	case c.updates <- rs:
	default:
		select {
		case <-c.updates:
		default:
		}
		select {
		case c.updates <- rs:
		default:
		}
	}
}

// WatchOptions configures the reload loop.
type WatchOptions struct {
	PolicyPath     string
	SanctionsPath  string
	ReloadInterval time.Duration
	Logger         *slog.Logger
	Metrics        *observability.RiskEngineMetrics
}

// Watch polls the policy and sanctions files on ReloadInterval, rebuilding
// and republishing a RuleSet whenever the policy version changes. It returns
// once ctx is canceled. A reload that fails to read or validate is logged
// and otherwise ignored: the previously published RuleSet remains in effect.
func Watch(ctx context.Context, ch *Channel, opts WatchOptions) {
	ticker := time.NewTicker(opts.ReloadInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reload(ch, opts)
		}
	}
}

func reload(ch *Channel, opts WatchOptions) {
	current := ch.Latest()
	if current != nil {
		doc, err := Load(opts.PolicyPath)
		if err != nil {
			logReloadError(opts, err)
			return
		}
		if doc.Version == current.PolicyVersion {
			return
		}
		publishFromDocument(ch, doc, opts)
		return
	}

	doc, err := Load(opts.PolicyPath)
	if err != nil {
		logReloadError(opts, err)
		return
	}
	publishFromDocument(ch, doc, opts)
}

func publishFromDocument(ch *Channel, doc *domain.Policy, opts WatchOptions) {
	sanctioned, err := LoadSanctions(opts.SanctionsPath)
	if err != nil {
		logReloadError(opts, err)
		return
	}
	rs, err := Build(doc, sanctioned)
	if err != nil {
		logReloadError(opts, err)
		return
	}
	ch.publish(rs)
	if opts.Logger != nil {
		opts.Logger.Info("policy reloaded", "policy_version", rs.PolicyVersion)
	}
	if opts.Metrics != nil {
		opts.Metrics.RecordPolicyReload("ok")
	}
}

func logReloadError(opts WatchOptions, err error) {
	if opts.Logger != nil {
		opts.Logger.Error("policy reload failed", "error", err)
	}
	if opts.Metrics != nil {
		opts.Metrics.RecordPolicyReload("error")
	}
}
