package search

import (
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/tacossynth/tacos/internal/abword"
	"github.com/tacossynth/tacos/internal/ata"
	"github.com/tacossynth/tacos/internal/region"
)

// Heuristic assigns an expansion cost to a freshly created node; the
// driver expands cheaper nodes first. Implementations must be safe for
// concurrent use. Ties are broken by insertion order, so any Heuristic
// yields a total order.
type Heuristic interface {
	ComputeCost(n *Node) int64
}

// BFSHeuristic expands nodes in creation order: a monotone counter makes
// earlier insertions cheaper.
type BFSHeuristic struct {
	ctr atomic.Int64
}

func (h *BFSHeuristic) ComputeCost(*Node) int64 {
	return h.ctr.Add(1)
}

// DFSHeuristic expands the most recently created node first: a monotone
// decreasing counter.
type DFSHeuristic struct {
	ctr atomic.Int64
}

func (h *DFSHeuristic) ComputeCost(*Node) int64 {
	return -h.ctr.Add(1)
}

// RandomHeuristic assigns pseudo-random costs from a seeded source.
type RandomHeuristic struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomHeuristic returns a RandomHeuristic driven by the given seed.
func NewRandomHeuristic(seed int64) *RandomHeuristic {
	return &RandomHeuristic{rng: rand.New(rand.NewSource(seed))}
}

func (h *RandomHeuristic) ComputeCost(*Node) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rng.Int63n(1 << 30)
}

// PendingObligationsHeuristic scores a node by how many non-final ATA
// obligations its words still carry: fewer pending obligations means the
// node is closer to an accepting ATA configuration.
type PendingObligationsHeuristic struct {
	ATA *ata.Automaton
}

func (h *PendingObligationsHeuristic) ComputeCost(n *Node) int64 {
	var cost int64
	for _, w := range n.Words() {
		for _, sym := range w.Symbols() {
			if sym.Kind != abword.KindATA {
				continue
			}
			switch sym.ATALocation {
			case locSatisfied, locViolated:
				continue
			}
			if !h.ATA.IsFinal(sym.ATALocation) {
				cost++
			}
		}
	}
	return cost
}

// OverflowHeuristic scores a node by the number of region symbols already
// in the overflow class. Saturated clocks mean little time structure is
// left to exploit, so such nodes are deprioritized.
type OverflowHeuristic struct {
	K int
}

func (h *OverflowHeuristic) ComputeCost(n *Node) int64 {
	var cost int64
	for _, w := range n.Words() {
		for _, sym := range w.Symbols() {
			if region.IsOverflow(sym.RegionIndex, h.K) {
				cost++
			}
		}
	}
	return cost
}

// Weighted pairs a sub-heuristic with its weight in a composite.
type Weighted struct {
	Weight    int64
	Heuristic Heuristic
}

// CompositeHeuristic is a weighted sum of sub-heuristics.
type CompositeHeuristic struct {
	Parts []Weighted
}

func (h *CompositeHeuristic) ComputeCost(n *Node) int64 {
	var cost int64
	for _, p := range h.Parts {
		cost += p.Weight * p.Heuristic.ComputeCost(n)
	}
	return cost
}

// DefaultComposite is the composite used when the CLI asks for
// "composite": mostly breadth-first, nudged toward nodes with few pending
// obligations and away from saturated ones.
func DefaultComposite(a *ata.Automaton, k int) *CompositeHeuristic {
	return &CompositeHeuristic{Parts: []Weighted{
		{Weight: 1, Heuristic: &BFSHeuristic{}},
		{Weight: 16, Heuristic: &PendingObligationsHeuristic{ATA: a}},
		{Weight: 4, Heuristic: &OverflowHeuristic{K: k}},
	}}
}
