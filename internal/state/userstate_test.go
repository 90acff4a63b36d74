package state_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"riskengine/internal/domain"
	"riskengine/internal/state"
)

func usd(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestAddTx_DropsOldestAtCapacity(t *testing.T) {
	s := state.New("u1")
	base := time.Unix(1_700_000_000, 0)
	for i := 0; i < state.MaxTxEntries; i++ {
		s.AddTx(domain.TxEntry{Timestamp: base.Add(time.Duration(i) * time.Millisecond), USDValue: usd(1)})
	}
	require.Len(t, s.Entries, state.MaxTxEntries)
	require.Equal(t, base, s.Entries[0].Timestamp)

	s.AddTx(domain.TxEntry{Timestamp: base.Add(time.Hour), USDValue: usd(1)})
	require.Len(t, s.Entries, state.MaxTxEntries, "capacity must stay bounded")
	require.Equal(t, base.Add(time.Millisecond), s.Entries[0].Timestamp, "oldest entry must be dropped")
}

func TestPruneExpired_RemovesOnlyContiguousPrefix(t *testing.T) {
	s := state.New("u1")
	now := time.Unix(1_700_100_000, 0)
	s.AddTx(domain.TxEntry{Timestamp: now.Add(-25 * time.Hour), USDValue: usd(10)})
	s.AddTx(domain.TxEntry{Timestamp: now.Add(-23 * time.Hour), USDValue: usd(20)})
	s.AddTx(domain.TxEntry{Timestamp: now.Add(-1 * time.Hour), USDValue: usd(30)})

	s.PruneExpired(now)
	require.Len(t, s.Entries, 2)
	require.Equal(t, usd(20), s.Entries[0].USDValue)
}

func TestRollingUSD24h_SumsWithinWindowOnly(t *testing.T) {
	s := state.New("u1")
	now := time.Unix(1_700_100_000, 0)
	s.AddTx(domain.TxEntry{Timestamp: now.Add(-25 * time.Hour), USDValue: usd(1000)})
	s.AddTx(domain.TxEntry{Timestamp: now.Add(-1 * time.Hour), USDValue: usd(200)})
	s.AddTx(domain.TxEntry{Timestamp: now, USDValue: usd(50)})

	require.True(t, usd(250).Equal(s.RollingUSD24h(now)))
}

func TestRollingUSD24h_DoesNotRequirePruneFirst(t *testing.T) {
	s := state.New("u1")
	now := time.Unix(1_700_100_000, 0)
	s.AddTx(domain.TxEntry{Timestamp: now.Add(-48 * time.Hour), USDValue: usd(999)})
	require.True(t, decimal.Zero.Equal(s.RollingUSD24h(now)))
}

func TestCountSmallTx_StrictlyBelowThreshold(t *testing.T) {
	s := state.New("u1")
	now := time.Unix(1_700_100_000, 0)
	s.AddTx(domain.TxEntry{Timestamp: now, USDValue: usd(999)})
	s.AddTx(domain.TxEntry{Timestamp: now, USDValue: usd(1000)})
	s.AddTx(domain.TxEntry{Timestamp: now, USDValue: usd(1001)})

	require.Equal(t, 1, s.CountSmallTx(now, usd(1000)), "at-threshold must not count as small")
}

func TestView_SatisfiesRollingStateInterface(t *testing.T) {
	s := state.New("u1")
	now := time.Unix(1_700_100_000, 0)
	s.AddTx(domain.TxEntry{Timestamp: now, USDValue: usd(500)})

	var rs domain.RollingState = state.NewView(s, now)
	require.True(t, usd(500).Equal(rs.RollingUSD24h()))
	require.Equal(t, 1, rs.CountSmallTx(usd(501)))
}
