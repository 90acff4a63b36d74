// Package domain holds the core value types shared by every component of the
// risk decision engine: decisions, evidence, subjects, transactions, and the
// policy schema they are evaluated against.
package domain

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Decision is a totally ordered severity ladder. The numeric value is the
// rank used for pointwise-maximum combination; higher is more severe.
type Decision int

const (
	Allow Decision = iota
	SoftDenyRetry
	HoldAuto
	Review
	RejectFatal
)

// Max returns the more severe of the two decisions (pointwise join). Ties
// return either argument since they are equal.
func Max(a, b Decision) Decision {
	if b > a {
		return b
	}
	return a
}

// IsFatal reports whether the decision is the terminal REJECT_FATAL rung.
func (d Decision) IsFatal() bool {
	return d == RejectFatal
}

// String renders the canonical SCREAMING_SNAKE_CASE name.
func (d Decision) String() string {
	switch d {
	case Allow:
		return "ALLOW"
	case SoftDenyRetry:
		return "SOFT_DENY_RETRY"
	case HoldAuto:
		return "HOLD_AUTO"
	case Review:
		return "REVIEW"
	case RejectFatal:
		return "REJECT_FATAL"
	default:
		return "ALLOW"
	}
}

// ParseDecision parses the canonical SCREAMING_SNAKE_CASE spelling produced by String.
func ParseDecision(s string) (Decision, error) {
	switch s {
	case "ALLOW":
		return Allow, nil
	case "SOFT_DENY_RETRY":
		return SoftDenyRetry, nil
	case "HOLD_AUTO":
		return HoldAuto, nil
	case "REVIEW":
		return Review, nil
	case "REJECT_FATAL":
		return RejectFatal, nil
	default:
		return Allow, fmt.Errorf("domain: unknown decision %q", s)
	}
}

// MarshalYAML renders the decision as its canonical string spelling.
func (d Decision) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// UnmarshalYAML parses the canonical string spelling from a policy document.
func (d *Decision) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("domain: decision must be a string")
	}
	parsed, err := ParseDecision(value.Value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON renders the decision as its canonical string spelling.
func (d Decision) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON parses the canonical string spelling.
func (d *Decision) UnmarshalJSON(data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("domain: invalid decision literal %q", data)
	}
	parsed, err := ParseDecision(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
