package policy_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"riskengine/internal/policy"
)

func TestLoad_ParsesValidDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	contents := `
version: "2026-08-01"
params:
  kyc_tier_caps_usd:
    L0: "1000"
  daily_volume_limit_usd: "50000"
rules:
  - id: R1_OFAC
    type: ofac_addr
    action: REJECT_FATAL
  - id: R4_VOL
    type: daily_usd_volume
    action: HOLD_AUTO
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	doc, err := policy.Load(path)
	require.NoError(t, err)
	require.Equal(t, "2026-08-01", doc.Version)
	require.Len(t, doc.Rules, 2)
}

func TestLoad_RejectsDuplicateRuleIDs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	contents := `
version: "v1"
rules:
  - id: R1
    type: ofac_addr
    action: REJECT_FATAL
  - id: R1
    type: jurisdiction_block
    action: REJECT_FATAL
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	_, err := policy.Load(path)
	require.Error(t, err)
}

func TestLoadSanctions_IgnoresBlankAndCommentLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sanctions.txt")
	contents := "# OFAC SDN addresses\n\n0xDEAD\n0xBEEF\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	set, err := policy.LoadSanctions(path)
	require.NoError(t, err)
	require.Len(t, set, 2)
	_, ok := set["0xdead"]
	require.True(t, ok)
}

func TestLoadSanctions_EmptyPathReturnsEmptySet(t *testing.T) {
	set, err := policy.LoadSanctions("")
	require.NoError(t, err)
	require.Empty(t, set)
}
