package inline

import (
	"github.com/shopspring/decimal"

	"riskengine/internal/domain"
)

// KYCTierCapRule caps the per-transaction USD value allowed for a subject's
// verification tier. A tier absent from the map, or mapped to zero/negative,
// has no cap.
type KYCTierCapRule struct {
	id     string
	action domain.Decision
	caps   map[domain.KYCTier]decimal.Decimal
}

// NewKYCTierCapRule constructs the rule from a tier-to-cap map.
func NewKYCTierCapRule(id string, action domain.Decision, caps map[domain.KYCTier]decimal.Decimal) *KYCTierCapRule {
	return &KYCTierCapRule{id: id, action: action, caps: caps}
}

// ID implements domain.InlineRule.
func (r *KYCTierCapRule) ID() string { return r.id }

// Evaluate implements domain.InlineRule. The comparison is strictly greater
// than the cap; a transaction at exactly the cap is allowed.
func (r *KYCTierCapRule) Evaluate(event *domain.TxEvent) domain.RuleResult {
	limit, ok := r.caps[event.Subject.KYCTier]
	if !ok || limit.Sign() <= 0 {
		return domain.NoHit()
	}
	if !event.USDValue.GreaterThan(limit) {
		return domain.NoHit()
	}
	return domain.Hit(r.action, domain.Evidence{
		RuleID: r.id,
		Key:    "usd_value",
		Value:  event.USDValue.String(),
		Limit:  limit.String(),
	})
}
