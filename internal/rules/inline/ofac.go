// Package inline implements the stateless, pure rule evaluators that run in
// phase one of the decision pipeline, over the request alone.
package inline

import (
	"hash"
	"hash/fnv"

	"github.com/holiman/bloomfilter/v2"

	"riskengine/internal/domain"
)

// bloomFalsePositiveRate is the target false-positive rate for the sanctions
// bloom filter; a positive bloom answer is always confirmed against the exact
// set before the rule fires, so this only controls how often the fast path
// pays for a confirmation it didn't need.
const bloomFalsePositiveRate = 0.01

// OFACRule screens the subject's addresses against a sanctioned-address set.
// A bloom filter gives a fast, sound negative answer; a positive bloom result
// is always confirmed against the exact set, so the bloom is purely an
// optimization — a correct implementation could use the set alone.
type OFACRule struct {
	id        string
	action    domain.Decision
	sanctions map[string]struct{}
	bloom     *bloomfilter.Filter
}

// NewOFACRule constructs a sanctions screen. sanctioned addresses are assumed
// already normalized to lowercase by the caller (LoadSanctions does this).
func NewOFACRule(id string, action domain.Decision, sanctioned map[string]struct{}) (*OFACRule, error) {
	n := uint64(len(sanctioned))
	if n < 100 {
		n = 100
	}
	filter, err := bloomfilter.NewOptimal(n, bloomFalsePositiveRate)
	if err != nil {
		return nil, err
	}
	for addr := range sanctioned {
		filter.Add(addressHash(addr))
	}
	return &OFACRule{id: id, action: action, sanctions: sanctioned, bloom: filter}, nil
}

// ID implements domain.InlineRule.
func (r *OFACRule) ID() string { return r.id }

// Evaluate implements domain.InlineRule. The bloom filter never yields a
// false negative, so an "absent" bloom answer is a definite miss.
func (r *OFACRule) Evaluate(event *domain.TxEvent) domain.RuleResult {
	for _, addr := range event.Subject.Addresses {
		if !r.bloom.Contains(addressHash(addr)) {
			continue
		}
		if _, exact := r.sanctions[addr]; !exact {
			continue
		}
		return domain.Hit(r.action, domain.Evidence{RuleID: r.id, Key: "address", Value: addr})
	}
	return domain.NoHit()
}

// bloomHasher adapts a precomputed 64-bit digest to hash.Hash64 so it can be
// passed to bloomfilter.Filter.Add/Contains, which (like go-ethereum's own
// bloom filter call sites) takes a hash.Hash64, not a bare uint64.
type bloomHasher uint64

func (h bloomHasher) Sum64() uint64             { return uint64(h) }
func (bloomHasher) Write([]byte) (int, error)   { panic("bloomHasher: Write not supported") }
func (bloomHasher) Sum(b []byte) []byte         { panic("bloomHasher: Sum not supported") }
func (bloomHasher) Reset()                      { panic("bloomHasher: Reset not supported") }
func (bloomHasher) Size() int                   { return 8 }
func (bloomHasher) BlockSize() int              { return 8 }

var _ hash.Hash64 = bloomHasher(0)

func addressHash(addr string) bloomHasher {
	h := fnv.New64a()
	_, _ = h.Write([]byte(addr))
	return bloomHasher(h.Sum64())
}
