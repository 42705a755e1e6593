package rarity

import (
	"sync"

	"github.com/Tinycute00/NFT-DEX/internal/domain"
)

// Distribution counts how many tokens carry each attribute name/value pair.
// It is in-memory instrumentation rebuilt on restart; it is not consulted by
// any pricing path.
type Distribution struct {
	mu     sync.Mutex
	counts map[string]map[int64]int64
}

// NewDistribution returns an empty table.
func NewDistribution() *Distribution {
	return &Distribution{counts: make(map[string]map[int64]int64)}
}

// Swap removes the previous attribute set from the counts and adds the new
// one, keeping totals balanced under replacement.
func (d *Distribution) Swap(prev, next []domain.Attribute) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, a := range prev {
		if vals, ok := d.counts[a.Name]; ok {
			if vals[a.Value] > 0 {
				vals[a.Value]--
			}
			if vals[a.Value] == 0 {
				delete(vals, a.Value)
			}
		}
	}
	for _, a := range next {
		vals, ok := d.counts[a.Name]
		if !ok {
			vals = make(map[int64]int64)
			d.counts[a.Name] = vals
		}
		vals[a.Value]++
	}
}

// Snapshot returns a deep copy of the counts.
func (d *Distribution) Snapshot() map[string]map[int64]int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]map[int64]int64, len(d.counts))
	for name, vals := range d.counts {
		cp := make(map[int64]int64, len(vals))
		for v, c := range vals {
			cp[v] = c
		}
		out[name] = cp
	}
	return out
}
