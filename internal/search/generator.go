// Package search implements the symbolic game-search engine: successor
// generation over canonical AB-words, the search DAG with its node
// lifecycle and TOP/BOTTOM labeling, and the concurrent heuristic-driven
// expansion driver.
package search

import (
	"sort"

	"github.com/tacossynth/tacos/internal/abword"
	"github.com/tacossynth/tacos/internal/ata"
	"github.com/tacossynth/tacos/internal/oracle"
	"github.com/tacossynth/tacos/internal/ta"
)

// Owner says whose choice a symbol represents in the synthesis game.
type Owner int

const (
	OwnerEnvironment Owner = iota
	OwnerController
)

func (o Owner) String() string {
	if o == OwnerController {
		return "controller"
	}
	return "environment"
}

// Action is one edge label of the search DAG: a region-time increment
// followed by a symbol.
type Action struct {
	Increment int
	Symbol    oracle.Symbol
}

func (a Action) less(o Action) bool {
	if a.Increment != o.Increment {
		return a.Increment < o.Increment
	}
	return a.Symbol < o.Symbol
}

// Sentinel ATA locations the generator substitutes for the two kinds of
// empty configuration a symbol step can produce. A step whose obligations
// all discharge leaves nothing to track but is permanently satisfied; a
// step in which some obligation has no model left can never be satisfied
// again. Both would otherwise canonicalize to the same word (no ATA
// symbols at all), so they are kept apart explicitly.
const (
	locSatisfied ata.Location = "⊤"
	locViolated  ata.Location = "⊥"
)

// markerClock stands in for the plant location when the plant declares no
// clocks at all: without it a canonical word would carry no TA symbol and
// two clockless configurations in different locations would collide in
// node deduplication.
const markerClock ta.Clock = ""

// Generator enumerates the symbol-labeled and time-increment-labeled
// successors of a canonical AB-word. It is immutable and safe for
// concurrent use.
type Generator struct {
	// Oracle is the plant successor oracle (in-memory TA or Golog).
	Oracle oracle.SuccessorOracle

	// ATA is the specification automaton the plant is synchronized with.
	ATA *ata.Automaton

	// K is the maximum integer constant; region indices run 0..2K+1.
	K int

	// Controller holds the controller-owned symbols; everything else is
	// environment-owned.
	Controller map[oracle.Symbol]bool

	// Atoms is the atomic-proposition alphabet of the specification
	// formula. The reading handed to the ATA on a step is the subset of
	// Atoms realized by that step (the action's own name, plus the
	// "at(<location>)" predicate of the successor plant location).
	Atoms []string
}

// OwnerOf classifies a symbol. The synthetic termination symbols carry a
// fixed ownership: ctl_terminate is the controller ending the run,
// env_terminate the environment.
func (g *Generator) OwnerOf(sym oracle.Symbol) Owner {
	switch sym {
	case oracle.CtlTerminate:
		return OwnerController
	case oracle.EnvTerminate:
		return OwnerEnvironment
	}
	if g.Controller[sym] {
		return OwnerController
	}
	return OwnerEnvironment
}

// pinned reports whether sym never moves under time elapse: the clockless
// plant marker and the two sentinel ATA locations are timeless.
func pinned(sym abword.Symbol) bool {
	if sym.Kind == abword.KindTA {
		return sym.Clock == markerClock
	}
	return sym.ATALocation == locSatisfied || sym.ATALocation == locViolated
}

// canonicalize wraps abword.Canonical, adding the marker symbol for a
// clockless plant so the location survives abstraction.
func (g *Generator) canonicalize(cfg oracle.Config, states ata.States) abword.Word {
	if len(cfg.Clocks) > 0 {
		return abword.Canonical(cfg, states, g.K)
	}
	with := oracle.Config{
		Location: cfg.Location,
		Clocks:   map[ta.Clock]float64{markerClock: 0},
	}
	return abword.Canonical(with, states, g.K)
}

// decanonicalize wraps abword.Decanonicalize, stripping the marker clock
// back out of the representative valuation.
func (g *Generator) decanonicalize(w abword.Word) (oracle.Config, ata.States) {
	loc, clocks, states := abword.Decanonicalize(w, g.K)
	delete(clocks, markerClock)
	return oracle.Config{Location: loc, Clocks: clocks}, states
}

// InitialWord abstracts the joint initial configuration: the plant's
// initial configuration next to {(ATA initial, 0)}.
func (g *Generator) InitialWord() abword.Word {
	states := ata.NewStates()
	states.Add(ata.State{Location: g.ATA.Initial(), Clock: 0})
	return g.canonicalize(g.Oracle.InitialConfiguration(), states)
}

// timeSuccessor is the one-step region time successor of w: the smallest
// time elapse that changes the region word. If every symbol is pinned or
// in the overflow class, w is its own successor (saturated).
func timeSuccessor(w abword.Word, K int) abword.Word {
	if len(w) == 0 {
		return w
	}

	head, rest := splitHead(w, K)

	// Case A: some zero-fraction symbol can still move. An infinitesimal
	// elapse turns each point region into the following open region;
	// symbols sitting exactly at K spill into the overflow class and stay
	// with the head.
	var movable []abword.Symbol
	var stay []abword.Symbol
	for _, s := range head {
		if pinned(s) || s.RegionIndex == 2*K+1 {
			stay = append(stay, s)
			continue
		}
		movable = append(movable, s)
	}
	if len(movable) > 0 {
		var opened []abword.Symbol
		for _, s := range movable {
			s.RegionIndex++
			if s.RegionIndex > 2*K {
				s.RegionIndex = 2*K + 1
				stay = append(stay, s)
				continue
			}
			opened = append(opened, s)
		}
		out := make(abword.Word, 0, len(rest)+2)
		if len(stay) > 0 {
			out = append(out, sortGroup(stay))
		}
		if len(opened) > 0 {
			out = append(out, sortGroup(opened))
		}
		return append(out, rest...)
	}

	// Case B: nothing at fraction zero can move; the next boundary is the
	// largest-fraction group reaching the next integer, which merges it
	// into the head.
	if len(rest) == 0 {
		return w // saturated
	}
	last := rest[len(rest)-1]
	merged := append([]abword.Symbol(nil), stay...)
	for _, s := range last {
		s.RegionIndex++
		merged = append(merged, s)
	}
	out := make(abword.Word, 0, len(rest))
	out = append(out, sortGroup(merged))
	return append(out, rest[:len(rest)-1]...)
}

// splitHead separates w's zero-fraction group (if present) from the
// strictly-fractional tail. The head is recognized by content: point
// regions, the overflow class, and pinned symbols all live at fraction
// zero; a group of open regions does not.
func splitHead(w abword.Word, K int) (abword.Group, []abword.Group) {
	if len(w) == 0 {
		return nil, nil
	}
	first := w[0]
	for _, s := range first {
		if pinned(s) || s.RegionIndex%2 == 0 || s.RegionIndex == 2*K+1 {
			return first, w[1:]
		}
	}
	return nil, w
}

func sortGroup(syms []abword.Symbol) abword.Group {
	sort.Slice(syms, func(i, j int) bool { return syms[i].Less(syms[j]) })
	return abword.Group(syms)
}

// timeIncrements enumerates the distinct region words reachable from w by
// pure time elapse, in increasing order of delay: up to 2K+2 of them.
// Index i in the result is the word after i region-boundary steps.
func (g *Generator) timeIncrements(w abword.Word) []abword.Word {
	out := []abword.Word{w}
	cur := w
	for i := 0; i < 2*g.K+1; i++ {
		next := timeSuccessor(cur, g.K)
		if next.Equal(cur) {
			break
		}
		out = append(out, next)
		cur = next
	}
	return out
}

// saturated reports whether no further time elapse changes w.
func (g *Generator) saturated(w abword.Word) bool {
	return timeSuccessor(w, g.K).Equal(w)
}

// PlantRegions gives the region index of every plant clock in w after
// delta region-boundary steps of time elapse. The controller extractor
// uses this to turn an edge's increment back into concrete clock guards.
func (g *Generator) PlantRegions(w abword.Word, delta int) map[ta.Clock]int {
	for i := 0; i < delta; i++ {
		w = timeSuccessor(w, g.K)
	}
	out := map[ta.Clock]int{}
	for _, sym := range w.Symbols() {
		if sym.Kind == abword.KindTA && sym.Clock != markerClock {
			out[sym.Clock] = sym.RegionIndex
		}
	}
	return out
}

// Succ is one outgoing edge of a canonical word: the action and every
// successor word it can lead to (nondeterminism of plant and ATA both
// contribute).
type Succ struct {
	Action Action
	Words  []abword.Word
}

// Successors enumerates every (Δ, σ) edge out of w: each valid
// region-time increment, followed by each symbol enabled in the plant under
// the incremented word, combined with the ATA's own step on the matching
// atom reading. The result is deterministic: edges are ordered by
// (increment, symbol) and each edge's words by canonical key.
func (g *Generator) Successors(w abword.Word) ([]Succ, error) {
	var out []Succ
	for delta, wd := range g.timeIncrements(w) {
		cfg, states := g.decanonicalize(wd)

		enabled := append([]oracle.Symbol(nil), g.Oracle.EnabledActions(cfg)...)
		sort.Slice(enabled, func(i, j int) bool { return enabled[i] < enabled[j] })

		for _, sym := range enabled {
			words, err := g.symbolStep(cfg, states, sym)
			if err != nil {
				return nil, err
			}
			if len(words) == 0 {
				continue
			}
			out = append(out, Succ{Action: Action{Increment: delta, Symbol: sym}, Words: words})
		}

		if g.saturated(wd) {
			out = append(out, g.terminationSuccessors(delta, cfg, states, enabled)...)
		}
	}
	return out, nil
}

// symbolStep computes the successor words for reading sym from the
// representative configuration (cfg, states): the plant steps through its
// own transition relation, the ATA through the atom reading realized by
// each plant successor.
func (g *Generator) symbolStep(cfg oracle.Config, states ata.States, sym oracle.Symbol) ([]abword.Word, error) {
	plantSuccs, err := g.Oracle.Step(cfg, sym)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var words []abword.Word
	for _, pcfg := range plantSuccs {
		reading := g.readingFor(sym, pcfg.Location)
		for _, succStates := range g.stepATA(states, reading) {
			word := g.canonicalize(pcfg, succStates)
			if k := word.Key(); !seen[k] {
				seen[k] = true
				words = append(words, word)
			}
		}
	}
	sort.Slice(words, func(i, j int) bool { return words[i].Key() < words[j].Key() })
	return words, nil
}

// readingFor projects a plant step onto the specification's atom alphabet:
// the action's own name and the at(<location>) predicate of the successor
// location, filtered to the atoms the formula actually mentions.
func (g *Generator) readingFor(sym oracle.Symbol, target ta.Location) ata.Symbol {
	var atoms []string
	for _, a := range g.Atoms {
		if a == string(sym) || a == "at("+string(target)+")" {
			atoms = append(atoms, a)
		}
	}
	return ata.NewSymbol(atoms...)
}

// stepATA advances the abstracted ATA configuration by one symbol step,
// evaluated on region representatives. The
// sentinel locations absorb: a satisfied configuration stays satisfied, a
// violated one stays violated. A state with no transition or no model left
// collapses the whole step to the violated sentinel; a configuration whose
// obligations all discharge collapses to the satisfied sentinel.
func (g *Generator) stepATA(states ata.States, reading ata.Symbol) []ata.States {
	if states.Has(ata.State{Location: locViolated, Clock: 0}) {
		return []ata.States{sentinel(locViolated)}
	}
	real := make([]ata.State, 0, states.Len())
	for _, s := range states.Elements() {
		if s.Location == locSatisfied {
			continue
		}
		real = append(real, s)
	}
	if len(real) == 0 {
		return []ata.States{sentinel(locSatisfied)}
	}
	sort.Slice(real, func(i, j int) bool {
		if real[i].Location != real[j].Location {
			return real[i].Location < real[j].Location
		}
		return real[i].Clock < real[j].Clock
	})

	combos := []ata.States{ata.NewStates()}
	for _, s := range real {
		t, ok := g.ATA.Transition(s.Location, reading)
		if !ok {
			return []ata.States{sentinel(locViolated)}
		}
		models := t.Formula.MinimalModels(s.Clock)
		if len(models) == 0 {
			return []ata.States{sentinel(locViolated)}
		}
		var next []ata.States
		for _, acc := range combos {
			for _, m := range models {
				u := acc.Copy()
				u.AddAll(m)
				next = append(next, u)
			}
		}
		combos = next
	}

	combos = minimalConfigs(combos)
	out := make([]ata.States, 0, len(combos))
	for _, c := range combos {
		if c.Len() == 0 {
			c = sentinel(locSatisfied)
		}
		out = append(out, c)
	}
	return out
}

func sentinel(loc ata.Location) ata.States {
	s := ata.NewStates()
	s.Add(ata.State{Location: loc, Clock: 0})
	return s
}

// minimalConfigs keeps only the ⊆-minimal state sets, dropping supersets
// and duplicate sets.
func minimalConfigs(configs []ata.States) []ata.States {
	var out []ata.States
	for i, c := range configs {
		dominated := false
		for j, other := range configs {
			if i == j {
				continue
			}
			if other.Len() < c.Len() && subsetOf(other, c) {
				dominated = true
				break
			}
			if other.Len() == c.Len() && subsetOf(other, c) && j < i {
				dominated = true
				break
			}
		}
		if !dominated {
			out = append(out, c)
		}
	}
	return out
}

func subsetOf(small, big ata.States) bool {
	for _, s := range small.Elements() {
		if !big.Has(s) {
			return false
		}
	}
	return true
}

// terminationSuccessors synthesizes the ctl_terminate/env_terminate edges
// once the word is saturated: the
// controller may end the run iff the environment could still act, and vice
// versa. Only oracles implementing oracle.Terminator (the Golog front-end)
// participate.
func (g *Generator) terminationSuccessors(delta int, cfg oracle.Config, states ata.States, enabled []oracle.Symbol) []Succ {
	term, ok := g.Oracle.(oracle.Terminator)
	if !ok {
		return nil
	}

	var envEnabled, ctlEnabled bool
	for _, sym := range enabled {
		if g.OwnerOf(sym) == OwnerController {
			ctlEnabled = true
		} else {
			envEnabled = true
		}
	}

	tcfg := term.Terminate(cfg)
	reading := g.readingFor("terminated", tcfg.Location)
	succStates := g.stepATA(states, reading)

	var words []abword.Word
	seen := map[string]bool{}
	for _, s := range succStates {
		word := g.canonicalize(tcfg, s)
		if k := word.Key(); !seen[k] {
			seen[k] = true
			words = append(words, word)
		}
	}
	sort.Slice(words, func(i, j int) bool { return words[i].Key() < words[j].Key() })

	var out []Succ
	if envEnabled {
		out = append(out, Succ{Action: Action{Increment: delta, Symbol: oracle.CtlTerminate}, Words: words})
	}
	if ctlEnabled {
		out = append(out, Succ{Action: Action{Increment: delta, Symbol: oracle.EnvTerminate}, Words: words})
	}
	return out
}

// accepting reports whether the ATA side of w is fully within final
// locations; the sentinels count as satisfied/violated respectively.
func (g *Generator) accepting(w abword.Word) bool {
	for _, sym := range w.Symbols() {
		if sym.Kind != abword.KindATA {
			continue
		}
		switch sym.ATALocation {
		case locSatisfied:
			// counts as final
		case locViolated:
			return false
		default:
			if !g.ATA.IsFinal(sym.ATALocation) {
				return false
			}
		}
	}
	return true
}

// violated reports whether w carries the violated sentinel: the
// specification can no longer be satisfied on any extension.
func (g *Generator) violated(w abword.Word) bool {
	for _, sym := range w.Symbols() {
		if sym.Kind == abword.KindATA && sym.ATALocation == locViolated {
			return true
		}
	}
	return false
}

// plantAccepting reports whether w's plant side sits in a final
// configuration.
func (g *Generator) plantAccepting(w abword.Word) bool {
	cfg, _ := g.decanonicalize(w)
	return g.Oracle.IsAccepting(cfg)
}
