package inline

import (
	"strings"

	"riskengine/internal/domain"
)

// JurisdictionRule blocks subjects whose geo_iso matches a configured set of
// ISO-3166 alpha-2 country codes. An empty geo_iso is treated as unknown, not
// blocked.
type JurisdictionRule struct {
	id      string
	action  domain.Decision
	blocked map[string]struct{}
}

// NewJurisdictionRule constructs the rule, uppercasing each country code so
// it matches Subject.GeoISO regardless of how the policy document spelled it.
func NewJurisdictionRule(id string, action domain.Decision, countries []string) *JurisdictionRule {
	blocked := make(map[string]struct{}, len(countries))
	for _, c := range countries {
		blocked[strings.ToUpper(c)] = struct{}{}
	}
	return &JurisdictionRule{id: id, action: action, blocked: blocked}
}

// ID implements domain.InlineRule.
func (r *JurisdictionRule) ID() string { return r.id }

// Evaluate implements domain.InlineRule.
func (r *JurisdictionRule) Evaluate(event *domain.TxEvent) domain.RuleResult {
	geo := event.Subject.GeoISO
	if geo == "" {
		return domain.NoHit()
	}
	if _, blocked := r.blocked[geo]; !blocked {
		return domain.NoHit()
	}
	return domain.Hit(r.action, domain.Evidence{RuleID: r.id, Key: "geo_iso", Value: geo})
}
