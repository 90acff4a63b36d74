package policy

import (
	"fmt"

	"riskengine/internal/domain"
	"riskengine/internal/rules/inline"
	"riskengine/internal/rules/streaming"
)

// Build compiles a validated policy document plus a sanctions set into an
// immutable RuleSet. Rule order follows declaration order in the document;
// the pipeline relies on this for its first-evidence-wins decision_code.
//
// A daily_usd_volume or structuring_small_tx rule is silently skipped when
// its required threshold is absent from Params, rather than failing to
// build: an operator may declare the rule's action/id ahead of turning on
// the threshold, and a half-configured rule must not crash policy reload.
func Build(p *domain.Policy, sanctioned map[string]struct{}) (*domain.RuleSet, error) {
	set := &domain.RuleSet{PolicyVersion: p.Version}

	for _, def := range p.Rules {
		switch def.Type {
		case domain.RuleOFACAddr:
			rule, err := inline.NewOFACRule(def.ID, def.Action, sanctioned)
			if err != nil {
				return nil, fmt.Errorf("policy: build rule %s: %w", def.ID, err)
			}
			set.Inline = append(set.Inline, rule)

		case domain.RuleJurisdictionBlock:
			set.Inline = append(set.Inline, inline.NewJurisdictionRule(def.ID, def.Action, def.BlockedCountries))

		case domain.RuleKYCTierTxCap:
			if len(p.Params.KYCTierCapsUSD) == 0 {
				continue
			}
			set.Inline = append(set.Inline, inline.NewKYCTierCapRule(def.ID, def.Action, p.Params.KYCTierCapsUSD))

		case domain.RuleDailyUSDVolume:
			if p.Params.DailyVolumeLimitUSD == nil {
				continue
			}
			set.Streaming = append(set.Streaming, streaming.NewDailyVolumeRule(def.ID, def.Action, *p.Params.DailyVolumeLimitUSD))

		case domain.RuleStructuringSmall:
			if p.Params.StructuringSmallUSD == nil || p.Params.StructuringSmallCnt == nil {
				continue
			}
			set.Streaming = append(set.Streaming, streaming.NewStructuringRule(def.ID, def.Action, *p.Params.StructuringSmallUSD, *p.Params.StructuringSmallCnt))

		default:
			return nil, fmt.Errorf("policy: rule %s: unknown type %q", def.ID, def.Type)
		}
	}

	return set, nil
}
