package pipeline_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"riskengine/internal/actorpool"
	"riskengine/internal/domain"
	"riskengine/internal/pipeline"
	policypkg "riskengine/internal/policy"
	"riskengine/internal/rules/inline"
	"riskengine/internal/rules/streaming"
)

func usd(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func newEngine(rs *domain.RuleSet) *pipeline.Engine {
	return &pipeline.Engine{
		Pool:  actorpool.New(4),
		Rules: policypkg.NewChannel(rs),
	}
}

func baseRequest(userID, geo string, tier domain.KYCTier, amount int64) pipeline.Request {
	return pipeline.Request{
		Subject: pipeline.SubjectInput{UserID: userID, AccountID: "a1", Addresses: []string{"0x1"}, GeoISO: geo, KYCLevel: string(tier)},
		TxType:  "deposit",
		Asset:   "USDC",
		Amount:  "0",
		USDValue: usd(amount),
	}
}

func TestEvaluate_Allow(t *testing.T) {
	caps := map[domain.KYCTier]decimal.Decimal{domain.TierL2: usd(100000)}
	limit := usd(50000)
	rs := &domain.RuleSet{
		PolicyVersion: "v1",
		Inline:        []domain.InlineRule{inline.NewKYCTierCapRule("R3_KYC", domain.HoldAuto, caps)},
		Streaming:     []domain.StreamingRule{streaming.NewDailyVolumeRule("R4_VOL", domain.HoldAuto, limit)},
	}
	engine := newEngine(rs)

	resp, err := engine.Evaluate(context.Background(), baseRequest("u1", "US", domain.TierL2, 5000))
	require.NoError(t, err)
	require.Equal(t, domain.Allow, resp.Decision)
	require.Equal(t, "OK", resp.DecisionCode)
	require.Empty(t, resp.Evidence)
}

func TestEvaluate_InlineFatalShortCircuitsStreaming(t *testing.T) {
	sanctioned := map[string]struct{}{"0xdead": {}}
	ofac, err := inline.NewOFACRule("R1_OFAC", domain.RejectFatal, sanctioned)
	require.NoError(t, err)
	rs := &domain.RuleSet{
		PolicyVersion: "v1",
		Inline:        []domain.InlineRule{ofac},
		Streaming:     []domain.StreamingRule{streaming.NewDailyVolumeRule("R4_VOL", domain.HoldAuto, usd(1))},
	}
	engine := newEngine(rs)

	req := baseRequest("u1", "US", domain.TierL2, 10)
	req.Subject.Addresses = []string{"0xDEAD"}
	resp, err := engine.Evaluate(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, domain.RejectFatal, resp.Decision)
	require.Len(t, resp.Evidence, 1)
	require.Equal(t, "R1_OFAC", resp.Evidence[0].RuleID)
	require.Equal(t, "0xdead", resp.Evidence[0].Value)

	actor, ok := engine.Pool.Get("u1")
	require.False(t, ok, "fatal inline hit must not create an actor for the subject")
	require.Nil(t, actor, "fatal inline hit must skip streaming state mutation")
}

func TestEvaluate_KYCCapHit(t *testing.T) {
	caps := map[domain.KYCTier]decimal.Decimal{domain.TierL0: usd(1000)}
	rs := &domain.RuleSet{
		PolicyVersion: "v1",
		Inline:        []domain.InlineRule{inline.NewKYCTierCapRule("R3_KYC", domain.HoldAuto, caps)},
	}
	engine := newEngine(rs)

	resp, err := engine.Evaluate(context.Background(), baseRequest("u1", "US", domain.TierL0, 1001))
	require.NoError(t, err)
	require.Equal(t, domain.HoldAuto, resp.Decision)
	require.Equal(t, "R3_KYC", resp.DecisionCode)
	require.Equal(t, "1001", resp.Evidence[0].Value)
	require.Equal(t, "1000", resp.Evidence[0].Limit)
}

func TestEvaluate_RollingVolumeCrossoverOnThirdRequest(t *testing.T) {
	rs := &domain.RuleSet{
		PolicyVersion: "v1",
		Streaming:     []domain.StreamingRule{streaming.NewDailyVolumeRule("R4_VOL", domain.HoldAuto, usd(50000))},
	}
	engine := newEngine(rs)
	ctx := context.Background()

	r1, err := engine.Evaluate(ctx, baseRequest("u1", "US", domain.TierL2, 20000))
	require.NoError(t, err)
	require.Equal(t, domain.Allow, r1.Decision)

	r2, err := engine.Evaluate(ctx, baseRequest("u1", "US", domain.TierL2, 20000))
	require.NoError(t, err)
	require.Equal(t, domain.Allow, r2.Decision)

	r3, err := engine.Evaluate(ctx, baseRequest("u1", "US", domain.TierL2, 20000))
	require.NoError(t, err)
	require.Equal(t, domain.HoldAuto, r3.Decision)
	require.Equal(t, "60000", r3.Evidence[0].Value)
	require.Equal(t, "50000", r3.Evidence[0].Limit)
}

func TestEvaluate_StructuringTriggersOnSixthSmallTx(t *testing.T) {
	rs := &domain.RuleSet{
		PolicyVersion: "v1",
		Streaming:     []domain.StreamingRule{streaming.NewStructuringRule("R5_STRUCT", domain.Review, usd(10000), 5)},
	}
	engine := newEngine(rs)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		resp, err := engine.Evaluate(ctx, baseRequest("u1", "US", domain.TierL2, 1000))
		require.NoError(t, err)
		require.Equal(t, domain.Allow, resp.Decision)
	}

	resp, err := engine.Evaluate(ctx, baseRequest("u1", "US", domain.TierL2, 1000))
	require.NoError(t, err)
	require.Equal(t, domain.Review, resp.Decision)
	require.Equal(t, "6", resp.Evidence[0].Value)

	// A large transaction afterward must not re-trigger on its own.
	resp2, err := engine.Evaluate(ctx, baseRequest("u1", "US", domain.TierL2, 20000))
	require.NoError(t, err)
	require.Equal(t, domain.Allow, resp2.Decision)
}

func TestEvaluate_InvalidKYCLevelReturnsError(t *testing.T) {
	rs := &domain.RuleSet{PolicyVersion: "v1"}
	engine := newEngine(rs)
	req := baseRequest("u1", "US", domain.TierL2, 10)
	req.Subject.KYCLevel = "L9"

	_, err := engine.Evaluate(context.Background(), req)
	require.Error(t, err)
}
