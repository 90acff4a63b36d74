package actorpool

import (
	"sync"
	"time"

	"riskengine/internal/domain"
	"riskengine/internal/state"
)

// Actor exclusively owns one subject's UserState and a reference to the
// streaming ruleset currently in effect for it. All access is serialized
// through mu; critical sections are expected to be microseconds.
type Actor struct {
	mu         sync.Mutex
	userID     string
	state      *state.UserState
	rules      *domain.RuleSet
	lastAccess time.Time
}

// Lock acquires the actor's mutex and returns an unlock function, following
// the spec's "single blocking mutex per actor" design: critical sections do
// not await and contention is confined to one subject's concurrent requests.
func (a *Actor) Lock() func() {
	a.mu.Lock()
	return a.mu.Unlock
}

// State returns the actor's owned UserState. Callers must hold the actor lock.
func (a *Actor) State() *state.UserState { return a.state }

// Rules returns the streaming ruleset last published to this actor. Callers
// must hold the actor lock.
func (a *Actor) Rules() *domain.RuleSet { return a.rules }

// Touch refreshes the idle-eviction clock. Callers must hold the actor lock.
func (a *Actor) Touch(now time.Time) { a.lastAccess = now }

// shard is one independently-locked partition of the actor map. The RWMutex
// favors the read-dominated "actor already exists" lookup path.
type shard struct {
	mu     sync.RWMutex
	actors map[string]*Actor
}

func newShard() *shard {
	return &shard{actors: make(map[string]*Actor)}
}
