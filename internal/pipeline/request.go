// Package pipeline orchestrates the two-phase rule evaluation described for
// the decision engine: stateless inline rules first, then stateful
// streaming rules under the subject's actor lock, followed by the
// durability hook and latency accounting.
package pipeline

import (
	"time"

	"github.com/shopspring/decimal"

	"riskengine/internal/domain"
)

// SubjectInput is the wire-level subject payload before KYC tier parsing.
type SubjectInput struct {
	UserID    string
	AccountID string
	Addresses []string
	GeoISO    string
	KYCLevel  string
}

// Request is the normalized input to Evaluate, already decoded from JSON.
type Request struct {
	Subject     SubjectInput
	TxType      string
	Asset       string
	Amount      string
	USDValue    decimal.Decimal
	DestAddress string
}

// Response is what the HTTP layer renders back to the caller.
type Response struct {
	Decision      domain.Decision
	DecisionCode  string
	PolicyVersion string
	Evidence      []domain.Evidence
}

func buildEvent(req Request, now time.Time) (domain.TxEvent, error) {
	tier, err := domain.ParseKYCTier(req.Subject.KYCLevel)
	if err != nil {
		return domain.TxEvent{}, err
	}
	subject := domain.NewSubject(req.Subject.UserID, req.Subject.AccountID, req.Subject.Addresses, req.Subject.GeoISO, tier)

	return domain.TxEvent{
		SchemaVersion: domain.SchemaVersion,
		EventID:       domain.NewEventID(),
		OccurredAt:    now,
		ObservedAt:    now,
		Subject:       subject,
		TxHash:        req.DestAddress,
		Direction:     domain.DirectionFromTxType(req.TxType),
		Asset:         req.Asset,
		Amount:        req.Amount,
		USDValue:      req.USDValue,
	}, nil
}
