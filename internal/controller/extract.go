// Package controller extracts a winning controller from a completed,
// TOP-labeled search DAG: a timed automaton whose locations
// are the TOP search nodes and whose transitions realize, for each node,
// one winning controller action plus every winning answer to the
// environment's actions.
package controller

import (
	"fmt"
	"sort"

	"github.com/tacossynth/tacos/internal/abword"
	"github.com/tacossynth/tacos/internal/region"
	"github.com/tacossynth/tacos/internal/search"
	"github.com/tacossynth/tacos/internal/synerr"
	"github.com/tacossynth/tacos/internal/ta"
	"github.com/tacossynth/tacos/internal/util"
)

// Extract builds the controller TA from a finished search. The root must
// be labeled TOP; anything else is an UnsatisfiableSpecification error.
//
// When the DAG has cycles, TOP can ascend through a cycle and more than
// one winning controller action can be on offer; the choice is made
// deterministically by preferring the action with the lowest (increment,
// symbol) pair, and edges are walked in ascending child node ID. Breaking
// cycles this way can yield a non-minimal controller, never an incorrect
// one.
func Extract(res *search.Result, gen *search.Generator) (*ta.Automaton, error) {
	root := res.Root
	if root.Label() != search.LabelTop {
		return nil, synerr.Newf(synerr.UnsatisfiableSpecification,
			"search root is %s, no winning controller exists", root.Label())
	}
	if err := res.Context.Validate(); err != nil {
		return nil, err
	}

	b := &builder{
		res:       res,
		gen:       gen,
		locations: map[search.NodeID]ta.Location{},
		clocks:    map[ta.Clock]bool{},
		alphabet:  map[ta.Symbol]bool{},
	}
	for _, c := range gen.Oracle.Clocks() {
		b.clocks[c] = true
	}

	b.visit(root)

	return ta.New(
		b.locationList(),
		b.clockList(),
		b.symbolList(),
		b.locations[root.ID()],
		b.finals,
		b.transitions,
	)
}

type builder struct {
	res *search.Result
	gen *search.Generator

	locations   map[search.NodeID]ta.Location
	finals      []ta.Location
	clocks      map[ta.Clock]bool
	alphabet    map[ta.Symbol]bool
	transitions []ta.Transition
}

// locationFor names a node's controller location, registering it on first
// use.
func (b *builder) locationFor(n *search.Node) (ta.Location, bool) {
	if l, ok := b.locations[n.ID()]; ok {
		return l, false
	}
	l := ta.Location(fmt.Sprintf("n%d", n.ID()))
	b.locations[n.ID()] = l
	if n.State() == search.StateGood {
		b.finals = append(b.finals, l)
	}
	return l, true
}

// visit emits the outgoing controller transitions of every TOP node
// reachable from n through winning edges.
func (b *builder) visit(n *search.Node) {
	src, fresh := b.locationFor(n)
	if !fresh {
		return
	}

	sc := b.res.Context
	var chosen *search.Action
	for _, a := range n.Actions() {
		a := a
		if b.gen.OwnerOf(a.Symbol) != search.OwnerController {
			continue
		}
		if sc.CombinedLabel(n, a) != search.LabelTop {
			continue
		}
		chosen = &a
		break // Actions() is sorted, so the first hit is the lowest pair
	}

	for _, a := range n.Actions() {
		owner := b.gen.OwnerOf(a.Symbol)
		if owner == search.OwnerController {
			if chosen == nil || a != *chosen {
				continue
			}
		} else if sc.CombinedLabel(n, a) != search.LabelTop {
			continue
		}
		b.emit(n, src, a)
	}
}

// emit writes one transition per TOP child of (n, a) and recurses into
// the children.
func (b *builder) emit(n *search.Node, src ta.Location, a search.Action) {
	sc := b.res.Context
	ids := n.ChildrenFor(a)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	fired := b.gen.PlantRegions(n.Words()[0], a.Increment)

	for _, id := range ids {
		child := sc.Node(id)
		if child.Label() != search.LabelTop {
			continue
		}
		dst, _ := b.locationFor(child)

		b.alphabet[a.Symbol] = true
		b.transitions = append(b.transitions, ta.Transition{
			Source: src,
			Symbol: a.Symbol,
			Target: dst,
			Guard:  guardFor(fired, b.gen.K),
			Resets: resetsFor(fired, child),
		})

		b.visit(child)
	}
}

// guardFor translates the post-increment region index of each plant clock
// into the constraints that pin a concrete valuation to that region.
func guardFor(fired map[ta.Clock]int, k int) ta.Guard {
	g := ta.Guard{}
	for clock, idx := range fired {
		switch {
		case region.IsOverflow(idx, k):
			g[clock] = []region.Constraint{{Op: region.Greater, Comparand: k}}
		case region.IsPoint(idx):
			g[clock] = []region.Constraint{{Op: region.Equal, Comparand: idx / 2}}
		default:
			lo := (idx - 1) / 2
			g[clock] = []region.Constraint{
				{Op: region.Greater, Comparand: lo},
				{Op: region.Less, Comparand: lo + 1},
			}
		}
	}
	return g
}

// resetsFor infers the clocks the fired plant transition reset: those at
// region zero in the child that were not at zero when the edge fired.
func resetsFor(fired map[ta.Clock]int, child *search.Node) util.KeySet[ta.Clock] {
	resets := util.NewKeySet[ta.Clock]()
	for clock, idx := range clockRegionsOf(child) {
		if idx == 0 && fired[clock] != 0 {
			resets.Add(clock)
		}
	}
	return resets
}

func clockRegionsOf(n *search.Node) map[ta.Clock]int {
	out := map[ta.Clock]int{}
	for _, sym := range n.Words()[0].Symbols() {
		if sym.Kind == abword.KindTA && sym.Clock != "" {
			out[sym.Clock] = sym.RegionIndex
		}
	}
	return out
}

func (b *builder) locationList() []ta.Location {
	out := make([]ta.Location, 0, len(b.locations))
	for _, l := range b.locations {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (b *builder) clockList() []ta.Clock {
	out := make([]ta.Clock, 0, len(b.clocks))
	for c := range b.clocks {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (b *builder) symbolList() []ta.Symbol {
	out := make([]ta.Symbol, 0, len(b.alphabet))
	for s := range b.alphabet {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
