package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SchemaVersion is stamped on every TxEvent so downstream consumers (WAL,
// snapshot, audit export) can detect a future wire format change.
const SchemaVersion = 1

// Direction classifies a transfer relative to the subject.
type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// DirectionFromTxType maps a free-form transaction type string to a Direction.
// A type containing "withdraw" (case-insensitive) is Outbound; anything else
// is Inbound.
func DirectionFromTxType(txType string) Direction {
	if strings.Contains(strings.ToLower(txType), "withdraw") {
		return Outbound
	}
	return Inbound
}

// TxEvent is the normalized transaction derived from a decision request.
type TxEvent struct {
	SchemaVersion    int             `json:"schema_version"`
	EventID          string          `json:"event_id"`
	OccurredAt       time.Time       `json:"occurred_at"`
	ObservedAt       time.Time       `json:"observed_at"`
	Subject          Subject         `json:"subject"`
	Chain            string          `json:"chain"`
	TxHash           string          `json:"tx_hash"`
	Direction        Direction       `json:"direction"`
	Asset            string          `json:"asset"`
	Amount           string          `json:"amount"`
	USDValue         decimal.Decimal `json:"usd_value"`
	Confirmations    int             `json:"confirmations"`
	MaxFinalityDepth int             `json:"max_finality_depth"`
}

// NewEventID generates a fresh event identifier for requests that omit one.
func NewEventID() string {
	return uuid.NewString()
}

// TxEntry is the minimal record retained in a subject's rolling window.
type TxEntry struct {
	Timestamp time.Time       `json:"timestamp"`
	USDValue  decimal.Decimal `json:"usd_value"`
}

// Expired reports whether the entry falls on or before now-24h.
func (e TxEntry) Expired(now time.Time) bool {
	return !e.Timestamp.After(now.Add(-RollingWindow))
}

// RollingWindow is the trailing interval over which streaming rules aggregate.
const RollingWindow = 24 * time.Hour
