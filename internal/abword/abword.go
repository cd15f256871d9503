// Package abword implements the canonical AB-word: the region abstraction
// of a joint (TA, ATA) configuration into an ordered partition of region
// symbols, factored by time-region equivalence. This is the representation
// the successor generator and search tree (package search) operate over
// instead of concrete, real-valued configurations.
package abword

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/tacossynth/tacos/internal/ata"
	"github.com/tacossynth/tacos/internal/region"
	"github.com/tacossynth/tacos/internal/ta"
	"github.com/tacossynth/tacos/internal/util"
)

// Kind tags which side of the TA/ATA product a Symbol abstracts.
type Kind int

const (
	KindTA Kind = iota
	KindATA
)

// Symbol is an AB region symbol: either a
// TARegionState (a TA location's clock, abstracted to a region index) or
// an ATARegionState (an ATA location instance's implicit clock,
// abstracted the same way).
type Symbol struct {
	Kind Kind

	// TA fields, populated when Kind == KindTA.
	TALocation ta.Location
	Clock      ta.Clock

	// ATA fields, populated when Kind == KindATA.
	ATALocation ata.Location

	// RegionIndex is common to both: region.Index(v, K) of the
	// underlying valuation.
	RegionIndex int
}

// Less gives the total order used to sort a Group (Words themselves are
// compared by Key): TA-symbols precede ATA-symbols; within a side, ordered by
// (location, clock, index) or (formula-location, index) respectively.
func (s Symbol) Less(o Symbol) bool {
	if s.Kind != o.Kind {
		return s.Kind == KindTA
	}
	if s.Kind == KindTA {
		if s.TALocation != o.TALocation {
			return s.TALocation < o.TALocation
		}
		if s.Clock != o.Clock {
			return s.Clock < o.Clock
		}
		return s.RegionIndex < o.RegionIndex
	}
	if s.ATALocation != o.ATALocation {
		return s.ATALocation < o.ATALocation
	}
	return s.RegionIndex < o.RegionIndex
}

func (s Symbol) String() string {
	if s.Kind == KindTA {
		return fmt.Sprintf("TA(%s,%s,%d)", s.TALocation, s.Clock, s.RegionIndex)
	}
	return fmt.Sprintf("ATA(%s,%d)", s.ATALocation, s.RegionIndex)
}

// Group is a non-empty set of region symbols sharing the same fractional
// class, kept sorted by Symbol.Less for deterministic comparison.
type Group []Symbol

func (g Group) String() string {
	parts := make([]string, len(g))
	for i, s := range g {
		parts[i] = s.String()
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// Word is a canonical AB-word: an ordered sequence of Groups, ascending by
// fractional part, with the zero-fraction (and overflow) symbols in the
// first Group.
type Word []Group

// Key renders w as a string that is equal for two Words iff they are
// identical ordered sequences of ordered sets. Used as the map key for
// search-tree node deduplication.
func (w Word) Key() string {
	parts := make([]string, len(w))
	for i, g := range w {
		parts[i] = g.String()
	}
	return strings.Join(parts, "|")
}

func (w Word) Equal(o Word) bool { return w.Key() == o.Key() }

func (w Word) String() string { return w.Key() }

// Symbols returns every TA clock and ATA location instance mentioned in w,
// as a flat Symbol slice in word order, for callers (search, controller)
// that need to walk the abstracted configuration without caring about
// grouping.
func (w Word) Symbols() []Symbol {
	var out []Symbol
	for _, g := range w {
		out = append(out, g...)
	}
	return out
}

type fracEntry struct {
	symbol Symbol
	frac   float64
}

// Canonical builds the canonical AB-word for a joint (taConfig, ataStates)
// configuration relative to maximum constant K.
func Canonical(taConfig ta.Config, ataStates ata.States, K int) Word {
	var entries []fracEntry

	for _, clock := range util.OrderedKeys(taConfig.Clocks) {
		v := taConfig.Clocks[clock]
		idx := region.Index(v, K)
		sym := Symbol{Kind: KindTA, TALocation: taConfig.Location, Clock: clock, RegionIndex: idx}
		entries = append(entries, fracEntry{symbol: sym, frac: fracOf(v, idx, K)})
	}

	for _, s := range sortedATAStates(ataStates) {
		idx := region.Index(s.Clock, K)
		sym := Symbol{Kind: KindATA, ATALocation: s.Location, RegionIndex: idx}
		entries = append(entries, fracEntry{symbol: sym, frac: fracOf(s.Clock, idx, K)})
	}

	return groupByFraction(entries)
}

// fracOf gives the fractional part used for grouping: the overflow class
// is folded into the zero-fraction head group regardless of its true
// fractional part.
func fracOf(v float64, idx, K int) float64 {
	if region.IsOverflow(idx, K) {
		return 0
	}
	return v - math.Floor(v)
}

func sortedATAStates(states ata.States) []ata.State {
	out := states.Elements()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Location != out[j].Location {
			return out[i].Location < out[j].Location
		}
		return out[i].Clock < out[j].Clock
	})
	return out
}

func groupByFraction(entries []fracEntry) Word {
	byFrac := map[float64][]Symbol{}
	for _, e := range entries {
		byFrac[e.frac] = append(byFrac[e.frac], e.symbol)
	}
	fracs := make([]float64, 0, len(byFrac))
	for f := range byFrac {
		fracs = append(fracs, f)
	}
	sort.Float64s(fracs)

	word := make(Word, 0, len(fracs))
	for _, f := range fracs {
		syms := byFrac[f]
		sort.Slice(syms, func(i, j int) bool { return syms[i].Less(syms[j]) })
		word = append(word, Group(syms))
	}
	return word
}

// Decanonicalize picks a representative concrete configuration for w
// relative to K: a TA location, a clock valuation map, and an ATA state
// set, such that Canonical of the result re-produces w exactly. Each Group's
// index gi is assigned the representative fraction (gi+1)/d, d the smallest
// power of two above len(w): point and overflow symbols ignore it, so a
// head group stays at fraction zero, while open-region groups get distinct,
// strictly increasing fractions that are exact in binary, so the original
// grouping and ordering survive the round trip.
func Decanonicalize(w Word, K int) (ta.Location, map[ta.Clock]float64, ata.States) {
	clocks := map[ta.Clock]float64{}
	states := ata.NewStates()
	var loc ta.Location

	d := 1
	for d <= len(w) {
		d *= 2
	}
	for gi, g := range w {
		frac := float64(gi+1) / float64(d)
		for _, sym := range g {
			v := representativeValue(sym.RegionIndex, K, frac)
			switch sym.Kind {
			case KindTA:
				loc = sym.TALocation
				clocks[sym.Clock] = v
			case KindATA:
				states.Add(ata.State{Location: sym.ATALocation, Clock: v})
			}
		}
	}
	return loc, clocks, states
}

func representativeValue(idx, K int, frac float64) float64 {
	if region.IsOverflow(idx, K) {
		return float64(K) + 1
	}
	if region.IsPoint(idx) {
		return float64(idx) / 2
	}
	floorV := (idx - 1) / 2
	if frac <= 0 {
		frac = 0.5
	}
	return float64(floorV) + frac
}
