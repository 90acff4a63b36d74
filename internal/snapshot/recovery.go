package snapshot

import (
	"time"

	"riskengine/internal/actorpool"
	"riskengine/internal/domain"
	"riskengine/internal/state"
	"riskengine/internal/wal"
)

// Stats summarizes one recovery pass, reported at startup for operators to
// sanity-check that WAL replay picked up where the snapshot left off.
type Stats struct {
	SnapshotUsers   int
	WALTransactions int
	Errors          int
	TotalUsers      int
}

// Recover rebuilds the actor pool from the most recent snapshot, if any,
// then replays the WAL starting at the Checkpoint record whose snapshot ID
// matches the loaded snapshot. If no snapshot exists, replay is active from
// the first record. Transaction records before the matching checkpoint are
// already reflected in the snapshot and are skipped; records after it are
// applied to the corresponding (or freshly created) subject state.
func Recover(snapshotDir, walPath string, rules *domain.RuleSet, pool *actorpool.Pool, now time.Time) (Stats, error) {
	states := make(map[string]*state.UserState)

	doc, haveSnapshot, err := LoadLatest(snapshotDir)
	if err != nil {
		return Stats{}, err
	}

	var checkpointID string
	replayActive := true
	if haveSnapshot {
		checkpointID = doc.ID
		replayActive = false
		for _, s := range doc.States {
			states[s.UserID] = s
		}
	}

	result, err := wal.ReadAll(walPath)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{SnapshotUsers: len(states), Errors: result.Skipped}
	for _, rec := range result.Records {
		switch rec.Type {
		case wal.TypeCheckpoint:
			if haveSnapshot && rec.SnapshotID == checkpointID {
				replayActive = true
			}
		case wal.TypeTransaction:
			if !replayActive {
				continue
			}
			s, exists := states[rec.UserID]
			if !exists {
				s = state.New(rec.UserID)
				states[rec.UserID] = s
			}
			s.AddTx(domain.TxEntry{Timestamp: rec.Timestamp, USDValue: rec.USDValue})
			stats.WALTransactions++
		}
	}

	for _, s := range states {
		s.PruneExpired(now)
		pool.InsertWithState(s, rules)
	}
	stats.TotalUsers = len(states)
	return stats, nil
}
