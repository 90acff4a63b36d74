package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RuleType enumerates the closed set of rule kinds the engine understands.
type RuleType string

const (
	RuleOFACAddr          RuleType = "ofac_addr"
	RuleJurisdictionBlock RuleType = "jurisdiction_block"
	RuleKYCTierTxCap      RuleType = "kyc_tier_tx_cap"
	RuleDailyUSDVolume    RuleType = "daily_usd_volume"
	RuleStructuringSmall  RuleType = "structuring_small_tx"
)

// RuleDef is one declarative rule entry from a policy document.
type RuleDef struct {
	ID                string   `yaml:"id" json:"id"`
	Type              RuleType `yaml:"type" json:"type"`
	Action            Decision `yaml:"action" json:"action"`
	BlockedCountries  []string `yaml:"blocked_countries,omitempty" json:"blocked_countries,omitempty"`
}

// PolicyParams carries the threshold configuration shared across rule kinds.
type PolicyParams struct {
	KYCTierCapsUSD      map[KYCTier]decimal.Decimal `yaml:"kyc_tier_caps_usd,omitempty" json:"kyc_tier_caps_usd,omitempty"`
	DailyVolumeLimitUSD *decimal.Decimal            `yaml:"daily_volume_limit_usd,omitempty" json:"daily_volume_limit_usd,omitempty"`
	StructuringSmallUSD *decimal.Decimal            `yaml:"structuring_small_usd,omitempty" json:"structuring_small_usd,omitempty"`
	StructuringSmallCnt *int                        `yaml:"structuring_small_count,omitempty" json:"structuring_small_count,omitempty"`
}

// Policy is the validated, in-memory representation of a policy document.
type Policy struct {
	Version   string       `yaml:"version" json:"version"`
	Params    PolicyParams `yaml:"params" json:"params"`
	Rules     []RuleDef    `yaml:"rules" json:"rules"`
	Signature string       `yaml:"signature,omitempty" json:"signature,omitempty"`
}

// Validate enforces the schema invariants: non-empty version, unique rule IDs.
func (p *Policy) Validate() error {
	if p.Version == "" {
		return fmt.Errorf("domain: policy version must not be empty")
	}
	seen := make(map[string]struct{}, len(p.Rules))
	for _, rule := range p.Rules {
		if rule.ID == "" {
			return fmt.Errorf("domain: policy %s: rule id must not be empty", p.Version)
		}
		if _, dup := seen[rule.ID]; dup {
			return fmt.Errorf("domain: policy %s: duplicate rule id %q", p.Version, rule.ID)
		}
		seen[rule.ID] = struct{}{}
	}
	return nil
}

// InlineRule evaluates a TxEvent in isolation: stateless, pure, thread-safe.
type InlineRule interface {
	ID() string
	Evaluate(event *TxEvent) RuleResult
}

// RollingState is the read-only view of per-subject history a streaming rule
// needs. The concrete implementation lives in the state package; this
// interface exists so domain (and the rule packages that depend on it) never
// import state, avoiding a cycle.
type RollingState interface {
	RollingUSD24h() decimal.Decimal
	CountSmallTx(threshold decimal.Decimal) int
}

// StreamingRule evaluates a TxEvent against the subject's rolling window. It
// must not mutate state; the pipeline appends the transaction afterwards.
type StreamingRule interface {
	ID() string
	Evaluate(event *TxEvent, state RollingState) RuleResult
}

// RuleSet is the compiled, immutable bundle produced by the ruleset builder.
// It is shared by reference and never mutated in place; a policy change
// produces a brand new RuleSet.
type RuleSet struct {
	Inline        []InlineRule
	Streaming     []StreamingRule
	PolicyVersion string
}
