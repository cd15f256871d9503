// Package ta implements timed automata: locations connected by guarded,
// clock-resetting transitions over a finite alphabet, plus the two
// operations the rest of the synthesis engine needs from them (word
// acceptance and one-step successor enumeration).
package ta

import (
	"fmt"
	"sort"

	"github.com/tacossynth/tacos/internal/region"
	"github.com/tacossynth/tacos/internal/synerr"
	"github.com/tacossynth/tacos/internal/util"
)

// Location is an opaque TA location identifier.
type Location string

// Symbol is an alphabet symbol.
type Symbol string

// Clock is a clock name.
type Clock string

// Guard is a conjunctive clock guard: every listed constraint, keyed by the
// clock it constrains, must hold for the guard to be satisfied. A clock may
// appear more than once (e.g. "1 <= x" and "x < 3" together).
type Guard map[Clock][]region.Constraint

// Satisfied reports whether valuation satisfies every constraint in g.
func (g Guard) Satisfied(valuation map[Clock]float64) bool {
	for clock, constraints := range g {
		v := valuation[clock]
		for _, c := range constraints {
			if !c.Satisfied(v) {
				return false
			}
		}
	}
	return true
}

// Constants returns every comparand appearing in g, for region.MaxConstant.
func (g Guard) Constants() []int {
	var out []int
	for _, cs := range g {
		for _, c := range cs {
			out = append(out, c.Comparand)
		}
	}
	return out
}

// Transition is a single TA edge: firing it on Symbol from Source to Target
// requires Guard to hold, and then resets every clock in Resets to 0.
type Transition struct {
	Source Location
	Symbol Symbol
	Target Location
	Guard  Guard
	Resets util.KeySet[Clock]
}

// Constants returns every comparand appearing in t's guard.
func (t Transition) Constants() []int {
	return t.Guard.Constants()
}

// TimedWord is a sequence of (symbol, absolute time) pairs. Time must be
// non-decreasing.
type TimedWord []struct {
	Symbol Symbol
	Time   float64
}

// Config is a TA configuration: the current location and the valuation of
// every clock declared on the automaton.
type Config struct {
	Location Location
	Clocks   map[Clock]float64
}

// Automaton is an immutable timed automaton.
type Automaton struct {
	locations map[Location]bool
	clocks    map[Clock]bool
	alphabet  map[Symbol]bool
	initial   Location
	final     map[Location]bool

	// transitions indexed by source location, preserving insertion order
	// per source for deterministic successor enumeration.
	bySource map[Location][]Transition
}

// New builds an Automaton. It validates that every transition's source,
// target and resets refer to declared locations/clocks, and that every
// symbol belongs to the given alphabet, returning a synerr.InvalidAutomaton
// error otherwise.
func New(locations []Location, clocks []Clock, alphabet []Symbol, initial Location, final []Location, transitions []Transition) (*Automaton, error) {
	a := &Automaton{
		locations: make(map[Location]bool, len(locations)),
		clocks:    make(map[Clock]bool, len(clocks)),
		alphabet:  make(map[Symbol]bool, len(alphabet)),
		initial:   initial,
		final:     make(map[Location]bool, len(final)),
		bySource:  make(map[Location][]Transition),
	}
	for _, l := range locations {
		a.locations[l] = true
	}
	for _, c := range clocks {
		a.clocks[c] = true
	}
	for _, s := range alphabet {
		a.alphabet[s] = true
	}
	for _, l := range final {
		if !a.locations[l] {
			return nil, synerr.Newf(synerr.InvalidAutomaton, "final location %q was not declared", l)
		}
		a.final[l] = true
	}
	if !a.locations[initial] {
		return nil, synerr.Newf(synerr.InvalidAutomaton, "initial location %q was not declared", initial)
	}

	for _, t := range transitions {
		if !a.locations[t.Source] {
			return nil, synerr.Newf(synerr.InvalidAutomaton, "transition source %q was not declared", t.Source)
		}
		if !a.locations[t.Target] {
			return nil, synerr.Newf(synerr.InvalidAutomaton, "transition target %q was not declared", t.Target)
		}
		if !a.alphabet[t.Symbol] {
			return nil, synerr.Newf(synerr.InvalidAutomaton, "transition symbol %q was not declared", t.Symbol)
		}
		for clock := range t.Guard {
			if !a.clocks[clock] {
				return nil, synerr.Newf(synerr.InvalidAutomaton, "guard references undeclared clock %q", clock)
			}
		}
		for clock := range t.Resets {
			if !a.clocks[clock] {
				return nil, synerr.Newf(synerr.InvalidAutomaton, "reset references undeclared clock %q", clock)
			}
		}
		a.bySource[t.Source] = append(a.bySource[t.Source], t)
	}

	return a, nil
}

// Locations returns the automaton's declared locations in stable order.
func (a *Automaton) Locations() []Location {
	out := make([]Location, 0, len(a.locations))
	for l := range a.locations {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clocks returns the automaton's declared clocks in stable order.
func (a *Automaton) Clocks() []Clock {
	out := make([]Clock, 0, len(a.clocks))
	for c := range a.clocks {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Alphabet returns the automaton's declared alphabet in stable order.
func (a *Automaton) Alphabet() []Symbol {
	out := make([]Symbol, 0, len(a.alphabet))
	for s := range a.alphabet {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Initial returns the initial location.
func (a *Automaton) Initial() Location {
	return a.initial
}

// Transitions returns every transition, grouped by source location in
// stable order and preserving per-source insertion order.
func (a *Automaton) Transitions() []Transition {
	var out []Transition
	for _, l := range a.Locations() {
		out = append(out, a.bySource[l]...)
	}
	return out
}

// IsFinal reports whether l is an accepting location.
func (a *Automaton) IsFinal(l Location) bool {
	return a.final[l]
}

// InitialConfig returns the starting configuration, with every clock at 0.
func (a *Automaton) InitialConfig() Config {
	clocks := make(map[Clock]float64, len(a.clocks))
	for c := range a.clocks {
		clocks[c] = 0
	}
	return Config{Location: a.initial, Clocks: clocks}
}

// Constants returns every integer constant appearing in any transition's
// guard, satisfying region.Bounded.
func (a *Automaton) Constants() []int {
	var out []int
	for _, ts := range a.bySource {
		for _, t := range ts {
			out = append(out, t.Constants()...)
		}
	}
	return out
}

func advance(clocks map[Clock]float64, delta float64) map[Clock]float64 {
	out := make(map[Clock]float64, len(clocks))
	for c, v := range clocks {
		out[c] = v + delta
	}
	return out
}

func reset(clocks map[Clock]float64, resets util.KeySet[Clock]) map[Clock]float64 {
	out := make(map[Clock]float64, len(clocks))
	for c, v := range clocks {
		if resets.Has(c) {
			out[c] = 0
		} else {
			out[c] = v
		}
	}
	return out
}

// Successors returns, for every transition enabled on symbol from config's
// location whose guard is satisfied by config's clocks, the resulting
// configuration.
func (a *Automaton) Successors(config Config, symbol Symbol) ([]Config, error) {
	var out []Config
	for _, t := range a.bySource[config.Location] {
		if t.Symbol != symbol {
			continue
		}
		if !t.Guard.Satisfied(config.Clocks) {
			continue
		}
		out = append(out, Config{
			Location: t.Target,
			Clocks:   reset(config.Clocks, t.Resets),
		})
	}
	return out, nil
}

// AcceptsWord reports whether some path through the automaton, driven by
// word, ends in a final location. Each symbol is preceded by a time step of
// (timeᵢ - timeᵢ₋₁) applied to every clock.
func (a *Automaton) AcceptsWord(word TimedWord) (bool, error) {
	frontier := []Config{a.InitialConfig()}
	lastTime := 0.0

	for _, step := range word {
		delta := step.Time - lastTime
		if delta < 0 {
			return false, synerr.Newf(synerr.NegativeTimeDelta, "time decreased from %v to %v", lastTime, step.Time)
		}
		lastTime = step.Time

		var next []Config
		seen := make(map[string]bool)
		for _, cfg := range frontier {
			ticked := Config{Location: cfg.Location, Clocks: advance(cfg.Clocks, delta)}
			succs, err := a.Successors(ticked, step.Symbol)
			if err != nil {
				return false, err
			}
			for _, s := range succs {
				key := configKey(s)
				if !seen[key] {
					seen[key] = true
					next = append(next, s)
				}
			}
		}
		frontier = next
		if len(frontier) == 0 {
			return false, nil
		}
	}

	for _, cfg := range frontier {
		if a.IsFinal(cfg.Location) {
			return true, nil
		}
	}
	return false, nil
}

func configKey(c Config) string {
	keys := util.OrderedKeys(c.Clocks)
	s := string(c.Location)
	for _, k := range keys {
		s += fmt.Sprintf("|%s=%v", k, c.Clocks[k])
	}
	return s
}
