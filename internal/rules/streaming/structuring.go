package streaming

import (
	"strconv"

	"github.com/shopspring/decimal"

	"riskengine/internal/domain"
)

// StructuringRule detects a pattern of many small transactions clustering
// just under a reporting threshold within the rolling window.
type StructuringRule struct {
	id             string
	action         domain.Decision
	amountThresh   decimal.Decimal
	countThreshold int
}

// NewStructuringRule constructs the rule from an amount threshold ("small" is
// strictly below this) and a count threshold (triggers strictly above this).
func NewStructuringRule(id string, action domain.Decision, amountThreshold decimal.Decimal, countThreshold int) *StructuringRule {
	return &StructuringRule{id: id, action: action, amountThresh: amountThreshold, countThreshold: countThreshold}
}

// ID implements domain.StreamingRule.
func (r *StructuringRule) ID() string { return r.id }

// Evaluate implements domain.StreamingRule.
func (r *StructuringRule) Evaluate(event *domain.TxEvent, state domain.RollingState) domain.RuleResult {
	smallCount := state.CountSmallTx(r.amountThresh)
	currentIsSmall := event.USDValue.LessThan(r.amountThresh)
	total := smallCount
	if currentIsSmall {
		total++
	}
	if total <= r.countThreshold {
		return domain.NoHit()
	}
	return domain.Hit(r.action, domain.Evidence{
		RuleID: r.id,
		Key:    "small_cnt_24h",
		Value:  strconv.Itoa(total),
		Limit:  strconv.Itoa(r.countThreshold),
	})
}
