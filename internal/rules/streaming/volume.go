// Package streaming implements the stateful rule evaluators that run in
// phase two of the decision pipeline, against the subject's rolling window.
package streaming

import (
	"github.com/shopspring/decimal"

	"riskengine/internal/domain"
)

// DailyVolumeRule triggers when adding the current transaction would push the
// subject's trailing-24h USD volume above a configured limit.
type DailyVolumeRule struct {
	id     string
	action domain.Decision
	limit  decimal.Decimal
}

// NewDailyVolumeRule constructs the rule. Callers only include this rule in a
// RuleSet when a limit is actually configured (the builder skips it otherwise).
func NewDailyVolumeRule(id string, action domain.Decision, limit decimal.Decimal) *DailyVolumeRule {
	return &DailyVolumeRule{id: id, action: action, limit: limit}
}

// ID implements domain.StreamingRule.
func (r *DailyVolumeRule) ID() string { return r.id }

// Evaluate implements domain.StreamingRule. The comparison is strictly
// greater than the limit; a total landing exactly on the limit is allowed.
func (r *DailyVolumeRule) Evaluate(event *domain.TxEvent, state domain.RollingState) domain.RuleResult {
	total := state.RollingUSD24h().Add(event.USDValue)
	if !total.GreaterThan(r.limit) {
		return domain.NoHit()
	}
	return domain.Hit(r.action, domain.Evidence{
		RuleID: r.id,
		Key:    "daily_usd",
		Value:  total.String(),
		Limit:  r.limit.String(),
	})
}
