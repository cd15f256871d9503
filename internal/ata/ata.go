// Package ata implements Alternating Timed Automata: a finite set of
// locations, each carrying a single implicit clock, connected by
// transitions whose targets are positive-Boolean/modal formulas over
// location references and clock constraints rather than single locations.
package ata

import (
	"fmt"
	"sort"

	"github.com/tacossynth/tacos/internal/region"
	"github.com/tacossynth/tacos/internal/synerr"
	"github.com/tacossynth/tacos/internal/util"
)

// Location is an opaque ATA location identifier. The MTL translator
// assigns one Location per modal sub-formula; this package treats the
// identifier as opaque.
type Location string

// Symbol is a canonical, sorted, comma-joined rendering of a set of atomic
// propositions (the ATA alphabet is the power set of atoms). The
// empty string is the empty symbol, ∅.
type Symbol string

// NewSymbol builds the canonical Symbol for a set of atoms.
func NewSymbol(atoms ...string) Symbol {
	cp := append([]string(nil), atoms...)
	sort.Strings(cp)
	out := cp[:0]
	for i, a := range cp {
		if i == 0 || a != cp[i-1] {
			out = append(out, a)
		}
	}
	s := ""
	for i, a := range out {
		if i > 0 {
			s += ","
		}
		s += a
	}
	return Symbol(s)
}

// Atoms splits a Symbol back into its member atoms.
func (s Symbol) Atoms() []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	str := string(s)
	for i := 0; i <= len(str); i++ {
		if i == len(str) || str[i] == ',' {
			out = append(out, str[start:i])
			start = i + 1
		}
	}
	return out
}

// Kind tags the variant a Formula node is.
type Kind int

const (
	KindTrue Kind = iota
	KindFalse
	KindLoc
	KindConstraint
	KindAnd
	KindOr
	KindReset
)

// Formula is the free positive-Boolean/modal tree of transition targets.
// It is a tagged variant: exactly the fields relevant to Kind are
// populated, matched on by pattern in IsSatisfied/MinimalModels rather
// than by runtime polymorphism.
type Formula struct {
	Kind       Kind
	Loc        Location          // KindLoc
	Constraint region.Constraint // KindConstraint
	Children   []*Formula        // KindAnd, KindOr
	Sub        *Formula          // KindReset
}

func True() *Formula  { return &Formula{Kind: KindTrue} }
func False() *Formula { return &Formula{Kind: KindFalse} }
func Loc(l Location) *Formula {
	return &Formula{Kind: KindLoc, Loc: l}
}
func Constr(c region.Constraint) *Formula {
	return &Formula{Kind: KindConstraint, Constraint: c}
}
func And(fs ...*Formula) *Formula {
	return &Formula{Kind: KindAnd, Children: fs}
}
func Or(fs ...*Formula) *Formula {
	return &Formula{Kind: KindOr, Children: fs}
}
func Reset(f *Formula) *Formula {
	return &Formula{Kind: KindReset, Sub: f}
}

func (f *Formula) String() string {
	switch f.Kind {
	case KindTrue:
		return "true"
	case KindFalse:
		return "false"
	case KindLoc:
		return string(f.Loc)
	case KindConstraint:
		return f.Constraint.String()
	case KindReset:
		return fmt.Sprintf("reset(%s)", f.Sub)
	case KindAnd:
		return joinChildren(f.Children, " && ")
	case KindOr:
		return joinChildren(f.Children, " || ")
	default:
		return "?"
	}
}

func joinChildren(children []*Formula, sep string) string {
	s := ""
	for i, c := range children {
		if i > 0 {
			s += sep
		}
		s += fmt.Sprintf("(%s)", c)
	}
	return s
}

// Constants returns every integer comparand appearing in f, for
// region.MaxConstant.
func (f *Formula) Constants() []int {
	switch f.Kind {
	case KindConstraint:
		return []int{f.Constraint.Comparand}
	case KindReset:
		return f.Sub.Constants()
	case KindAnd, KindOr:
		var out []int
		for _, c := range f.Children {
			out = append(out, c.Constants()...)
		}
		return out
	default:
		return nil
	}
}

// State is a single ATA state: an ATA location paired with a valuation of
// its implicit clock.
type State struct {
	Location Location
	Clock    float64
}

// States is a configuration: a set of ATA states, interpreting universal/
// existential branching across the set.
type States = util.KeySet[State]

// NewStates builds an empty configuration.
func NewStates() States { return util.NewKeySet[State]() }

// IsSatisfied is the models-relation: whether the candidate
// configuration `states` satisfies f when f's location's clock reads v.
func (f *Formula) IsSatisfied(states States, v float64) bool {
	switch f.Kind {
	case KindTrue:
		return true
	case KindFalse:
		return false
	case KindConstraint:
		return f.Constraint.Satisfied(v)
	case KindLoc:
		return states.Has(State{Location: f.Loc, Clock: v})
	case KindAnd:
		for _, c := range f.Children {
			if !c.IsSatisfied(states, v) {
				return false
			}
		}
		return true
	case KindOr:
		for _, c := range f.Children {
			if c.IsSatisfied(states, v) {
				return true
			}
		}
		return false
	case KindReset:
		return f.Sub.IsSatisfied(states, 0)
	default:
		panic(fmt.Sprintf("ata: invalid Kind %d", f.Kind))
	}
}

// MinimalModels returns the set of ⊆-minimal state sets that satisfy f at
// valuation v. TRUE is satisfied by the empty set; FALSE by
// none; LocationRef(l) by {{(l,v)}}; ResetClock(φ) substitutes v<-0 inside;
// conjunction is the Cartesian-union of children's models; disjunction is
// their union, both filtered back down to the ⊆-minimal subset.
func (f *Formula) MinimalModels(v float64) []States {
	switch f.Kind {
	case KindTrue:
		return []States{NewStates()}
	case KindFalse:
		return nil
	case KindConstraint:
		if f.Constraint.Satisfied(v) {
			return []States{NewStates()}
		}
		return nil
	case KindLoc:
		m := NewStates()
		m.Add(State{Location: f.Loc, Clock: v})
		return []States{m}
	case KindReset:
		return f.Sub.MinimalModels(0)
	case KindAnd:
		acc := []States{NewStates()}
		for _, child := range f.Children {
			childModels := child.MinimalModels(v)
			if len(childModels) == 0 {
				return nil
			}
			var next []States
			for _, a := range acc {
				for _, b := range childModels {
					u := a.Copy()
					u.AddAll(b)
					next = append(next, u)
				}
			}
			acc = next
		}
		return filterMinimal(acc)
	case KindOr:
		var all []States
		for _, child := range f.Children {
			all = append(all, child.MinimalModels(v)...)
		}
		return filterMinimal(all)
	default:
		panic(fmt.Sprintf("ata: invalid Kind %d", f.Kind))
	}
}

// filterMinimal drops every set in models that is a (non-strict) superset
// of some other, distinct set in models, leaving only the ⊆-minimal ones.
func filterMinimal(models []States) []States {
	var out []States
	for i, m := range models {
		dominated := false
		for j, other := range models {
			if i == j {
				continue
			}
			if other.Len() < m.Len() && isSubset(other, m) {
				dominated = true
				break
			}
			if other.Len() == m.Len() && isSubset(other, m) && j < i {
				// identical set: keep only the first occurrence.
				dominated = true
				break
			}
		}
		if !dominated {
			out = append(out, m)
		}
	}
	return out
}

func isSubset(small, big States) bool {
	for k := range small {
		if !big.Has(k) {
			return false
		}
	}
	return true
}

// Transition is a single ATA edge: reading Symbol from Source evaluates
// Formula against the rest of the configuration.
type Transition struct {
	Source  Location
	Symbol  Symbol
	Formula *Formula
}

// Constants returns every integer comparand in t's formula.
func (t Transition) Constants() []int { return t.Formula.Constants() }

// Automaton is an immutable Alternating Timed Automaton.
type Automaton struct {
	locations map[Location]bool
	initial   Location
	final     map[Location]bool
	bySource  map[Location]map[Symbol]Transition
}

// New builds an Automaton, validating that every transition's source and
// every LocationRef within its formula refers to a declared location.
func New(locations []Location, initial Location, final []Location, transitions []Transition) (*Automaton, error) {
	a := &Automaton{
		locations: make(map[Location]bool, len(locations)),
		initial:   initial,
		final:     make(map[Location]bool, len(final)),
		bySource:  make(map[Location]map[Symbol]Transition),
	}
	for _, l := range locations {
		a.locations[l] = true
	}
	for _, l := range final {
		if !a.locations[l] {
			return nil, synerr.Newf(synerr.InvalidAutomaton, "ata: final location %q was not declared", l)
		}
		a.final[l] = true
	}
	if !a.locations[initial] {
		return nil, synerr.Newf(synerr.InvalidAutomaton, "ata: initial location %q was not declared", initial)
	}
	for _, t := range transitions {
		if !a.locations[t.Source] {
			return nil, synerr.Newf(synerr.InvalidAutomaton, "ata: transition source %q was not declared", t.Source)
		}
		if err := a.checkFormulaLocations(t.Formula); err != nil {
			return nil, err
		}
		if a.bySource[t.Source] == nil {
			a.bySource[t.Source] = make(map[Symbol]Transition)
		}
		if _, dup := a.bySource[t.Source][t.Symbol]; dup {
			return nil, synerr.Newf(synerr.InvalidAutomaton, "ata: duplicate transition for (%q, %q)", t.Source, t.Symbol)
		}
		a.bySource[t.Source][t.Symbol] = t
	}
	return a, nil
}

func (a *Automaton) checkFormulaLocations(f *Formula) error {
	switch f.Kind {
	case KindLoc:
		if !a.locations[f.Loc] {
			return synerr.Newf(synerr.InvalidAutomaton, "ata: formula references undeclared location %q", f.Loc)
		}
	case KindReset:
		return a.checkFormulaLocations(f.Sub)
	case KindAnd, KindOr:
		for _, c := range f.Children {
			if err := a.checkFormulaLocations(c); err != nil {
				return err
			}
		}
	}
	return nil
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

// Initial returns the initial location.
func (a *Automaton) Initial() Location { return a.initial }

// IsFinal reports whether l is an accepting location.
func (a *Automaton) IsFinal(l Location) bool { return a.final[l] }

// Transition returns the unique transition for (source, symbol), if one
// was declared. The successor generator uses this to step abstracted
// configurations one state at a time.
func (a *Automaton) Transition(source Location, symbol Symbol) (Transition, bool) {
	t, ok := a.bySource[source][symbol]
	return t, ok
}

// Transitions returns every transition in stable (source, symbol) order.
func (a *Automaton) Transitions() []Transition {
	var out []Transition
	for _, l := range a.Locations() {
		bySymbol := a.bySource[l]
		symbols := make([]Symbol, 0, len(bySymbol))
		for s := range bySymbol {
			symbols = append(symbols, s)
		}
		sort.Slice(symbols, func(i, j int) bool { return symbols[i] < symbols[j] })
		for _, s := range symbols {
			out = append(out, bySymbol[s])
		}
	}
	return out
}

// Constants returns every integer constant appearing in any transition's
// formula, satisfying region.Bounded.
func (a *Automaton) Constants() []int {
	var out []int
	for _, bySymbol := range a.bySource {
		for _, t := range bySymbol {
			out = append(out, t.Constants()...)
		}
	}
	return out
}

// StepKind distinguishes the two kinds of Configuration transitions, used
// to enforce strict symbol/time alternation.
type StepKind int

const (
	StepNone StepKind = iota
	StepSymbol
	StepTime
)

// Configuration is a States set tagged with the kind of step that produced
// it, so MakeSymbolStep/MakeTimeStep can reject two steps of the same kind
// fired back to back.
type Configuration struct {
	States States
	Last   StepKind
}

// InitialConfiguration returns {(initial, 0)}.
func (a *Automaton) InitialConfiguration() Configuration {
	s := NewStates()
	s.Add(State{Location: a.initial, Clock: 0})
	return Configuration{States: s, Last: StepNone}
}

// IsAccepting reports whether every state in cfg is in a final location.
func (a *Automaton) IsAccepting(cfg Configuration) bool {
	for s := range cfg.States {
		if !a.final[s.Location] {
			return false
		}
	}
	return true
}

// MakeSymbolStep advances cfg by reading symbol. For each state
// in cfg, the unique transition with that source and symbol is looked up;
// a state with no such transition "dies" (contributes no models, so no
// successor configuration exists at all, since every state must fire
// simultaneously). The Cartesian product of each firing state's minimal
// models, unioned together and filtered to ⊆-minimal combinations, gives
// the set of candidate successor configurations.
func (a *Automaton) MakeSymbolStep(cfg Configuration, symbol Symbol) ([]Configuration, error) {
	if cfg.Last == StepSymbol {
		return nil, synerr.New(synerr.WrongTransitionType, "ata: two symbol steps in a row")
	}
	perState := make([][]States, 0, len(cfg.States))
	for s := range cfg.States {
		t, ok := a.bySource[s.Location][symbol]
		if !ok {
			return nil, nil
		}
		models := t.Formula.MinimalModels(s.Clock)
		if len(models) == 0 {
			return nil, nil
		}
		perState = append(perState, models)
	}
	combos := []States{NewStates()}
	for _, models := range perState {
		var next []States
		for _, acc := range combos {
			for _, m := range models {
				u := acc.Copy()
				u.AddAll(m)
				next = append(next, u)
			}
		}
		combos = next
	}
	combos = filterMinimal(combos)
	out := make([]Configuration, len(combos))
	for i, c := range combos {
		out[i] = Configuration{States: c, Last: StepSymbol}
	}
	return out, nil
}

// MakeTimeStep advances every state's clock by delta. delta < 0
// is a NegativeTimeDelta error; a time step fired right after another time
// step is a WrongTransitionType error.
func (a *Automaton) MakeTimeStep(cfg Configuration, delta float64) (Configuration, error) {
	if delta < 0 {
		return Configuration{}, synerr.Newf(synerr.NegativeTimeDelta, "ata: time step of %v", delta)
	}
	if cfg.Last == StepTime {
		return Configuration{}, synerr.New(synerr.WrongTransitionType, "ata: two time steps in a row")
	}
	ns := NewStates()
	for s := range cfg.States {
		ns.Add(State{Location: s.Location, Clock: s.Clock + delta})
	}
	return Configuration{States: ns, Last: StepTime}, nil
}

// WordStep is a single (symbol, absolute time) entry of a timed word, fed
// to Accepts.
type WordStep struct {
	Symbol Symbol
	Time   float64
}

// Accepts reports whether some path driven by word ends in a configuration
// whose states are all in final locations. Each entry is
// preceded by a time step of (timeᵢ - timeᵢ₋₁); a nondeterministic symbol
// step may branch the frontier into several configurations.
func (a *Automaton) Accepts(word []WordStep) (bool, error) {
	frontier := []Configuration{a.InitialConfiguration()}
	lastTime := 0.0
	for _, step := range word {
		delta := step.Time - lastTime
		if delta < 0 {
			return false, synerr.Newf(synerr.NegativeTimeDelta, "ata: time decreased from %v to %v", lastTime, step.Time)
		}
		lastTime = step.Time

		ticked := make([]Configuration, 0, len(frontier))
		for _, cfg := range frontier {
			cfg.Last = StepNone // a fresh time step is always legal between word entries
			tc, err := a.MakeTimeStep(cfg, delta)
			if err != nil {
				return false, err
			}
			ticked = append(ticked, tc)
		}

		var next []Configuration
		for _, cfg := range ticked {
			succs, err := a.MakeSymbolStep(cfg, step.Symbol)
			if err != nil {
				return false, err
			}
			next = append(next, succs...)
		}
		frontier = next
		if len(frontier) == 0 {
			return false, nil
		}
	}

	for _, cfg := range frontier {
		if a.IsAccepting(cfg) {
			return true, nil
		}
	}
	return false, nil
}
