// Package actorpool partitions per-subject state behind a fixed number of
// independently-locked shards so that concurrent requests for different
// subjects never contend, while requests for the same subject serialize
// through that subject's own actor.
package actorpool

import (
	"hash/maphash"
	"time"

	"riskengine/internal/domain"
	"riskengine/internal/state"
)

// DefaultNumShards is the stripe count New uses when given a non-positive
// count. The stripe count is fixed at construction; it is not reconfigurable
// afterwards, since resizing would require rehashing every live actor under
// a global lock.
const DefaultNumShards = 64

// PoolStats reports a point-in-time view of shard occupancy, primarily for
// the debug endpoint and capacity planning.
type PoolStats struct {
	ShardSizes   []int
	TotalEntries int
}

// Pool is a striped map from subject ID to Actor. Reads and writes to
// distinct subjects proceed without blocking each other.
type Pool struct {
	shards    []*shard
	numShards uint64
	seed      maphash.Seed
}

// New constructs a pool with numShards stripes. numShards must be a power of
// two for the masking index computation to distribute evenly; DefaultNumShards
// satisfies this.
func New(numShards int) *Pool {
	if numShards <= 0 {
		numShards = DefaultNumShards
	}
	shards := make([]*shard, numShards)
	for i := range shards {
		shards[i] = newShard()
	}
	return &Pool{shards: shards, numShards: uint64(numShards), seed: maphash.MakeSeed()}
}

func (p *Pool) shardFor(userID string) *shard {
	var h maphash.Hash
	h.SetSeed(p.seed)
	_, _ = h.WriteString(userID)
	idx := h.Sum64() & (p.numShards - 1)
	return p.shards[idx]
}

// GetOrCreate returns the actor for userID, creating it with a fresh
// UserState if absent. The fast path takes only a read lock on the shard.
func (p *Pool) GetOrCreate(userID string, rules *domain.RuleSet) *Actor {
	sh := p.shardFor(userID)

	sh.mu.RLock()
	a, ok := sh.actors[userID]
	sh.mu.RUnlock()
	if ok {
		return a
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if a, ok := sh.actors[userID]; ok {
		return a
	}
	a = &Actor{userID: userID, state: state.New(userID), rules: rules, lastAccess: time.Now()}
	sh.actors[userID] = a
	return a
}

// Get returns the actor for userID without creating one, used by recovery
// and admin inspection paths that must not fabricate empty state.
func (p *Pool) Get(userID string) (*Actor, bool) {
	sh := p.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	a, ok := sh.actors[userID]
	return a, ok
}

// InsertWithState installs a fully-formed UserState, overwriting any
// existing actor for that subject. Used only during WAL/snapshot recovery
// before the pool is exposed to live traffic.
func (p *Pool) InsertWithState(s *state.UserState, rules *domain.RuleSet) {
	sh := p.shardFor(s.UserID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.actors[s.UserID] = &Actor{userID: s.UserID, state: s, rules: rules, lastAccess: time.Now()}
}

// UpdateRules broadcasts a newly published ruleset to every live actor. It
// does not touch shard membership and does not block request processing for
// longer than it takes to walk the existing actors under each shard's
// read lock plus a brief per-actor lock.
func (p *Pool) UpdateRules(rules *domain.RuleSet) {
	for _, sh := range p.shards {
		sh.mu.RLock()
		actors := make([]*Actor, 0, len(sh.actors))
		for _, a := range sh.actors {
			actors = append(actors, a)
		}
		sh.mu.RUnlock()

		for _, a := range actors {
			a.mu.Lock()
			a.rules = rules
			a.mu.Unlock()
		}
	}
}

// EvictIdle removes actors whose last access predates the cutoff and returns
// how many were removed. Eviction drops in-memory state only: a later request
// for an evicted subject starts from an empty rolling window, so transactions
// of that subject still inside the 24h window are no longer counted.
func (p *Pool) EvictIdle(cutoff time.Time) int {
	evicted := 0
	for _, sh := range p.shards {
		sh.mu.Lock()
		for id, a := range sh.actors {
			a.mu.Lock()
			idle := a.lastAccess.Before(cutoff)
			a.mu.Unlock()
			if idle {
				delete(sh.actors, id)
				evicted++
			}
		}
		sh.mu.Unlock()
	}
	return evicted
}

// Snapshot returns the UserState of every live actor, used to build a
// point-in-time snapshot document. Callers must not mutate the returned
// states; they are live references shared with the pool.
func (p *Pool) Snapshot() []*state.UserState {
	states := make([]*state.UserState, 0)
	for _, sh := range p.shards {
		sh.mu.RLock()
		for _, a := range sh.actors {
			a.mu.Lock()
			states = append(states, a.state)
			a.mu.Unlock()
		}
		sh.mu.RUnlock()
	}
	return states
}

// Stats reports per-shard occupancy.
func (p *Pool) Stats() PoolStats {
	stats := PoolStats{ShardSizes: make([]int, len(p.shards))}
	for i, sh := range p.shards {
		sh.mu.RLock()
		n := len(sh.actors)
		sh.mu.RUnlock()
		stats.ShardSizes[i] = n
		stats.TotalEntries += n
	}
	return stats
}
