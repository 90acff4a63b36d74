package policy_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"riskengine/internal/domain"
	"riskengine/internal/policy"
)

func TestBuild_OrdersInlineRulesByDeclaration(t *testing.T) {
	cap1000 := decimal.NewFromInt(1000)
	doc := &domain.Policy{
		Version: "v1",
		Params: domain.PolicyParams{
			KYCTierCapsUSD: map[domain.KYCTier]decimal.Decimal{domain.TierL0: cap1000},
		},
		Rules: []domain.RuleDef{
			{ID: "R2_GEO", Type: domain.RuleJurisdictionBlock, Action: domain.RejectFatal, BlockedCountries: []string{"IR"}},
			{ID: "R1_OFAC", Type: domain.RuleOFACAddr, Action: domain.RejectFatal},
			{ID: "R3_KYC", Type: domain.RuleKYCTierTxCap, Action: domain.HoldAuto},
		},
	}

	rs, err := policy.Build(doc, map[string]struct{}{})
	require.NoError(t, err)
	require.Len(t, rs.Inline, 3)
	require.Equal(t, "R2_GEO", rs.Inline[0].ID())
	require.Equal(t, "R1_OFAC", rs.Inline[1].ID())
	require.Equal(t, "R3_KYC", rs.Inline[2].ID())
	require.Equal(t, "v1", rs.PolicyVersion)
}

func TestBuild_SkipsStreamingRuleWithoutThreshold(t *testing.T) {
	doc := &domain.Policy{
		Version: "v1",
		Rules: []domain.RuleDef{
			{ID: "R4_VOL", Type: domain.RuleDailyUSDVolume, Action: domain.HoldAuto},
			{ID: "R5_STRUCT", Type: domain.RuleStructuringSmall, Action: domain.Review},
		},
	}

	rs, err := policy.Build(doc, map[string]struct{}{})
	require.NoError(t, err)
	require.Empty(t, rs.Streaming)
}

func TestBuild_IncludesStreamingRuleWhenThresholdsPresent(t *testing.T) {
	limit := decimal.NewFromInt(50000)
	small := decimal.NewFromInt(1000)
	count := 5
	doc := &domain.Policy{
		Version: "v1",
		Params: domain.PolicyParams{
			DailyVolumeLimitUSD: &limit,
			StructuringSmallUSD: &small,
			StructuringSmallCnt: &count,
		},
		Rules: []domain.RuleDef{
			{ID: "R4_VOL", Type: domain.RuleDailyUSDVolume, Action: domain.HoldAuto},
			{ID: "R5_STRUCT", Type: domain.RuleStructuringSmall, Action: domain.Review},
		},
	}

	rs, err := policy.Build(doc, map[string]struct{}{})
	require.NoError(t, err)
	require.Len(t, rs.Streaming, 2)
}

func TestBuild_UnknownRuleTypeFails(t *testing.T) {
	doc := &domain.Policy{
		Version: "v1",
		Rules:   []domain.RuleDef{{ID: "R9", Type: "not_a_real_rule", Action: domain.Allow}},
	}
	_, err := policy.Build(doc, map[string]struct{}{})
	require.Error(t, err)
}
