package streaming_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"riskengine/internal/domain"
	"riskengine/internal/rules/streaming"
	"riskengine/internal/state"
)

func usd(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestDailyVolumeRule_StrictlyGreaterThanLimit(t *testing.T) {
	rule := streaming.NewDailyVolumeRule("R4_VOL", domain.HoldAuto, usd(50000))
	now := time.Unix(1_700_000_000, 0)
	s := state.New("u1")
	s.AddTx(domain.TxEntry{Timestamp: now, USDValue: usd(20000)})
	s.AddTx(domain.TxEntry{Timestamp: now, USDValue: usd(20000)})
	view := state.NewView(s, now)

	event := &domain.TxEvent{USDValue: usd(20000)}
	result := rule.Evaluate(event, view)
	require.True(t, result.Hit)
	require.Equal(t, "60000", result.Evidence.Value)
	require.Equal(t, "50000", result.Evidence.Limit)
}

func TestDailyVolumeRule_AtLimitAllowed(t *testing.T) {
	rule := streaming.NewDailyVolumeRule("R4_VOL", domain.HoldAuto, usd(50000))
	now := time.Unix(1_700_000_000, 0)
	s := state.New("u1")
	view := state.NewView(s, now)

	result := rule.Evaluate(&domain.TxEvent{USDValue: usd(50000)}, view)
	require.False(t, result.Hit)
}

func TestStructuringRule_TriggersOnSixthSmallTx(t *testing.T) {
	rule := streaming.NewStructuringRule("R5_STRUCT", domain.Review, usd(10000), 5)
	now := time.Unix(1_700_000_000, 0)
	s := state.New("u1")
	for i := 0; i < 5; i++ {
		s.AddTx(domain.TxEntry{Timestamp: now, USDValue: usd(1000)})
	}
	view := state.NewView(s, now)

	result := rule.Evaluate(&domain.TxEvent{USDValue: usd(1000)}, view)
	require.True(t, result.Hit)
	require.Equal(t, "6", result.Evidence.Value)
	require.Equal(t, "5", result.Evidence.Limit)
}

func TestStructuringRule_LargeTxDoesNotCount(t *testing.T) {
	rule := streaming.NewStructuringRule("R5_STRUCT", domain.Review, usd(10000), 5)
	now := time.Unix(1_700_000_000, 0)
	s := state.New("u1")
	for i := 0; i < 5; i++ {
		s.AddTx(domain.TxEntry{Timestamp: now, USDValue: usd(1000)})
	}
	view := state.NewView(s, now)

	result := rule.Evaluate(&domain.TxEvent{USDValue: usd(20000)}, view)
	require.False(t, result.Hit)
}

func TestStructuringRule_AtThresholdAmountNotSmall(t *testing.T) {
	rule := streaming.NewStructuringRule("R5_STRUCT", domain.Review, usd(10000), 0)
	now := time.Unix(1_700_000_000, 0)
	s := state.New("u1")
	view := state.NewView(s, now)

	result := rule.Evaluate(&domain.TxEvent{USDValue: usd(10000)}, view)
	require.False(t, result.Hit, "amount equal to threshold is not small")
}
