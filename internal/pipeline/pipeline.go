package pipeline

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"riskengine/internal/actorpool"
	"riskengine/internal/domain"
	"riskengine/observability"
	"riskengine/internal/policy"
	"riskengine/internal/state"
	"riskengine/internal/wal"
)

var tracer = otel.Tracer("riskengine/pipeline")

// Engine wires the actor pool, the currently-published ruleset, the WAL
// writer, and observability together into the single entry point the HTTP
// layer calls.
type Engine struct {
	Pool          *actorpool.Pool
	Rules         *policy.Channel
	WAL           *wal.Writer
	Metrics       *observability.RiskEngineMetrics
	Logger        *slog.Logger
	LatencyBudget time.Duration
}

// Evaluate runs the full two-phase pipeline for one request and returns the
// decision, short-circuiting Phase 2 when a fatal inline rule fires.
func (e *Engine) Evaluate(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	rules := e.Rules.Latest()

	event, err := buildEvent(req, start)
	if err != nil {
		return Response{}, err
	}

	ctx, span := tracer.Start(ctx, "pipeline.evaluate",
		trace.WithAttributes(attribute.String("user_id", event.Subject.UserID)))
	defer span.End()

	final := domain.Allow
	var evidence []domain.Evidence

	final, evidence = e.runInline(ctx, rules, &event, final, evidence)

	if final.IsFatal() {
		e.finish(start, final, rules.PolicyVersion)
		return respond(final, evidence, rules.PolicyVersion), nil
	}

	final, evidence = e.runStreaming(ctx, rules, &event, final, evidence, start)

	e.finish(start, final, rules.PolicyVersion)
	return respond(final, evidence, rules.PolicyVersion), nil
}

func (e *Engine) runInline(ctx context.Context, rules *domain.RuleSet, event *domain.TxEvent, final domain.Decision, evidence []domain.Evidence) (domain.Decision, []domain.Evidence) {
	_, span := tracer.Start(ctx, "pipeline.inline")
	defer span.End()

	for _, rule := range rules.Inline {
		result := rule.Evaluate(event)
		if !result.Hit {
			continue
		}
		final = domain.Max(final, result.Decision)
		evidence = append(evidence, *result.Evidence)
	}
	if e.Metrics != nil {
		e.Metrics.ObserveRuleEval("inline", len(rules.Inline))
	}
	return final, evidence
}

func (e *Engine) runStreaming(ctx context.Context, rules *domain.RuleSet, event *domain.TxEvent, final domain.Decision, evidence []domain.Evidence, now time.Time) (domain.Decision, []domain.Evidence) {
	_, span := tracer.Start(ctx, "pipeline.streaming")
	defer span.End()

	actor := e.Pool.GetOrCreate(event.Subject.UserID, rules)
	unlock := actor.Lock()
	func() {
		defer unlock()

		view := state.NewView(actor.State(), now)
		for _, rule := range rules.Streaming {
			result := rule.Evaluate(event, view)
			if !result.Hit {
				continue
			}
			final = domain.Max(final, result.Decision)
			evidence = append(evidence, *result.Evidence)
		}

		actor.State().PruneExpired(now)
		actor.State().AddTx(domain.TxEntry{Timestamp: event.OccurredAt, USDValue: event.USDValue})
		actor.Touch(now)
	}()

	if e.Metrics != nil {
		e.Metrics.ObserveRuleEval("streaming", len(rules.Streaming))
	}

	e.appendWAL(event)
	return final, evidence
}

// appendWAL durably records the admitted transaction. Failure is logged and
// counted, never surfaced to the caller: the decision has already been
// formed and refusing to answer would only push the client toward a retry
// that re-triggers streaming rules.
func (e *Engine) appendWAL(event *domain.TxEvent) {
	if e.WAL == nil {
		return
	}
	if err := e.WAL.Append(wal.Transaction(event.Subject.UserID, event.OccurredAt, event.USDValue)); err != nil {
		if e.Logger != nil {
			e.Logger.Error("wal append failed", "error", err, "user_id", event.Subject.UserID)
		}
		if e.Metrics != nil {
			e.Metrics.RecordWALError()
		}
		return
	}
	if e.Metrics != nil {
		e.Metrics.RecordWALWrite()
	}
}

func (e *Engine) finish(start time.Time, final domain.Decision, policyVersion string) {
	elapsed := time.Since(start)
	if e.Metrics != nil {
		e.Metrics.ObserveLatency(float64(elapsed.Microseconds()) / 1000.0)
		e.Metrics.ObserveDecision(final.String())
	}
	if e.LatencyBudget > 0 && elapsed > e.LatencyBudget && e.Logger != nil {
		e.Logger.Warn("decision exceeded latency budget",
			"elapsed_ms", elapsed.Milliseconds(),
			"budget_ms", e.LatencyBudget.Milliseconds(),
			"policy_version", policyVersion,
			"decision", final.String(),
		)
	}
}

func respond(final domain.Decision, evidence []domain.Evidence, policyVersion string) Response {
	code := "OK"
	if len(evidence) > 0 {
		code = evidence[0].RuleID
	}
	return Response{
		Decision:      final,
		DecisionCode:  code,
		PolicyVersion: policyVersion,
		Evidence:      evidence,
	}
}
