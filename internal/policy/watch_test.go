package policy_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"riskengine/internal/domain"
	"riskengine/internal/policy"
)

const policyV1 = `
version: "v1"
rules:
  - id: R1_OFAC
    type: ofac_addr
    action: REJECT_FATAL
`

const policyV2 = `
version: "v2"
rules:
  - id: R1_OFAC
    type: ofac_addr
    action: REJECT_FATAL
  - id: R2_GEO
    type: jurisdiction_block
    action: REJECT_FATAL
    blocked_countries: ["IR"]
`

func TestWatch_ReloadsOnVersionBumpAndPublishes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(policyV1), 0o644))

	doc, err := policy.Load(path)
	require.NoError(t, err)
	rs, err := policy.Build(doc, nil)
	require.NoError(t, err)
	require.Equal(t, "v1", rs.PolicyVersion)

	ch := policy.NewChannel(rs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		policy.Watch(ctx, ch, policy.WatchOptions{
			PolicyPath:     path,
			ReloadInterval: 5 * time.Millisecond,
		})
		close(done)
	}()

	require.NoError(t, os.WriteFile(path, []byte(policyV2), 0o644))

	select {
	case updated := <-ch.Updates():
		require.Equal(t, "v2", updated.PolicyVersion)
		require.Len(t, updated.Inline, 2)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for policy reload to publish")
	}

	require.Eventually(t, func() bool {
		return ch.Latest().PolicyVersion == "v2"
	}, 2*time.Second, 5*time.Millisecond, "Latest() should observe the reloaded ruleset")

	cancel()
	<-done
}

func TestWatch_UnchangedVersionDoesNotRepublish(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(policyV1), 0o644))

	doc, err := policy.Load(path)
	require.NoError(t, err)
	rs, err := policy.Build(doc, nil)
	require.NoError(t, err)

	ch := policy.NewChannel(rs)
	original := ch.Latest()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	policy.Watch(ctx, ch, policy.WatchOptions{
		PolicyPath:     path,
		ReloadInterval: 5 * time.Millisecond,
	})

	require.Same(t, original, ch.Latest(), "an unchanged policy version must not republish a new RuleSet")

	select {
	case <-ch.Updates():
		t.Fatal("expected no publish for an unchanged policy version")
	default:
	}
}

func TestChannel_LatestReturnsSeedValueBeforeAnyPublish(t *testing.T) {
	initial := &domain.RuleSet{PolicyVersion: "v1"}
	ch := policy.NewChannel(initial)

	require.Same(t, initial, ch.Latest())
}
