package mtl

import (
	"fmt"

	"github.com/tacossynth/tacos/internal/ata"
	"github.com/tacossynth/tacos/internal/region"
)

// builder accumulates the ATA produced by closure construction: one
// location per distinct modal subformula (plus always one for the root,
// even when the root itself is non-modal), with a transition for every
// location against every symbol of the alphabet.
type builder struct {
	symbols []ata.Symbol
	locs    map[string]ata.Location
	order   []ata.Location
	pending []pendingItem
	counter int
	final   map[ata.Location]bool
}

type pendingItem struct {
	loc     ata.Location
	formula *Formula
}

// Translate builds the ATA for f over the alphabet of atoms.
// If atoms is nil, f.Atoms() is used. Translate first rewrites f to
// negation-normal form.
func Translate(f *Formula, atoms []string) (*ata.Automaton, error) {
	nnf := f.ToNNF()
	if atoms == nil {
		atoms = nnf.Atoms()
	}
	b := &builder{
		symbols: allSymbols(atoms),
		locs:    make(map[string]ata.Location),
		final:   make(map[ata.Location]bool),
	}

	rootLoc := b.locationFor(nnf)
	if isFinalKind(nnf) {
		b.final[rootLoc] = true
	}

	var transitions []ata.Transition
	for len(b.pending) > 0 {
		item := b.pending[0]
		b.pending = b.pending[1:]
		for _, sym := range b.symbols {
			transitions = append(transitions, ata.Transition{
				Source:  item.loc,
				Symbol:  sym,
				Formula: b.unfold(item.formula, sym),
			})
		}
	}

	return ata.New(b.order, rootLoc, finalSlice(b.final), transitions)
}

func finalSlice(final map[ata.Location]bool) []ata.Location {
	out := make([]ata.Location, 0, len(final))
	for l := range final {
		out = append(out, l)
	}
	return out
}

// allSymbols enumerates the power set of atoms as canonical ata.Symbols.
func allSymbols(atoms []string) []ata.Symbol {
	n := len(atoms)
	out := make([]ata.Symbol, 0, 1<<uint(n))
	for mask := 0; mask < (1 << uint(n)); mask++ {
		var subset []string
		for i, a := range atoms {
			if mask&(1<<uint(i)) != 0 {
				subset = append(subset, a)
			}
		}
		out = append(out, ata.NewSymbol(subset...))
	}
	return out
}

// locationFor returns the (memoized) location for φ, scheduling its
// transition table to be built if this is the first time φ is seen.
func (b *builder) locationFor(f *Formula) ata.Location {
	k := f.key()
	if l, ok := b.locs[k]; ok {
		return l
	}
	l := ata.Location(fmt.Sprintf("q%d", b.counter))
	b.counter++
	b.locs[k] = l
	b.order = append(b.order, l)
	b.pending = append(b.pending, pendingItem{loc: l, formula: f})
	if isFinalKind(f) {
		b.final[l] = true
	}
	return l
}

// isModal reports whether f gets its own ATA location rather than being
// inlined structurally wherever it's referenced: each modal sub-formula
// gets exactly one ATA location.
func isModal(f *Formula) bool {
	switch f.Kind {
	case KindUntil, KindDualUntil, KindFinally, KindGlobally:
		return true
	default:
		return false
	}
}

// isFinalKind classifies whether being "stuck" at a location for f when
// the word ends is an accepting outcome. Safety-flavored operators
// (Globally, DualUntil) are final: an undischarged safety obligation that
// was never violated is fine to end on. Liveness-flavored operators
// (Until, Finally) are not: they promise an eventual witness that a
// truncated word never delivered. Boolean connectives recurse
// structurally; True/False are literal.
func isFinalKind(f *Formula) bool {
	switch f.Kind {
	case KindGlobally, KindDualUntil, KindTrue:
		return true
	case KindFinally, KindUntil, KindFalse, KindAtom, KindNotAtom:
		return false
	case KindAnd:
		for _, c := range f.Children {
			if !isFinalKind(c) {
				return false
			}
		}
		return true
	case KindOr:
		for _, c := range f.Children {
			if isFinalKind(c) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// ref is the contribution of f to an enclosing transition formula: modal
// subformulas are referenced by (reset) location, boolean connectives and
// atoms are expanded in place.
func (b *builder) ref(f *Formula, sym ata.Symbol) *ata.Formula {
	if isModal(f) {
		loc := b.locationFor(f)
		return ata.Reset(ata.Loc(loc))
	}
	return b.step(f, sym)
}

// step is the structural (non-modal) one-instant evaluation of f against
// sym: purely boolean composition of atom membership tests, with modal
// subformulas deferred to ref.
func (b *builder) step(f *Formula, sym ata.Symbol) *ata.Formula {
	switch f.Kind {
	case KindTrue:
		return ata.True()
	case KindFalse:
		return ata.False()
	case KindAtom:
		if atomIn(sym, f.Atom) {
			return ata.True()
		}
		return ata.False()
	case KindNotAtom:
		if atomIn(sym, f.Atom) {
			return ata.False()
		}
		return ata.True()
	case KindAnd:
		fs := make([]*ata.Formula, len(f.Children))
		for i, c := range f.Children {
			fs[i] = b.ref(c, sym)
		}
		return ata.And(fs...)
	case KindOr:
		fs := make([]*ata.Formula, len(f.Children))
		for i, c := range f.Children {
			fs[i] = b.ref(c, sym)
		}
		return ata.Or(fs...)
	default:
		// a modal formula reached structurally (e.g. the root itself):
		// defer to its own (already-allocated) location.
		return b.ref(f, sym)
	}
}

func atomIn(sym ata.Symbol, name string) bool {
	for _, a := range sym.Atoms() {
		if a == name {
			return true
		}
	}
	return false
}

// window holds the clock-constraint formulas shared by every
// modal unfold rule: whether the clock is still before the window, within
// it, or past it, all against the ATA's implicit per-location clock
// rather than a TA clock.
type window struct {
	before     *ata.Formula // c < lower (false if lower == 0)
	withinLow  *ata.Formula // c >= lower
	withinHigh *ata.Formula // c <= upper (true if unbounded)
	inWindow   *ata.Formula // withinLow && withinHigh
	canWait    *ata.Formula // before || inWindow: still legal to act now or delay further
	pastUpper  *ata.Formula // c > upper (false if unbounded)
}

func windowOf(iv Interval) window {
	withinLow := ata.Constr(region.Constraint{Op: region.GreaterEqual, Comparand: iv.Lower})
	var before, withinHigh, pastUpper *ata.Formula
	if iv.Lower == 0 {
		before = ata.False()
	} else {
		before = ata.Constr(region.Constraint{Op: region.Less, Comparand: iv.Lower})
	}
	if iv.UpperInf {
		withinHigh = ata.True()
		pastUpper = ata.False()
	} else {
		withinHigh = ata.Constr(region.Constraint{Op: region.LessEqual, Comparand: iv.Upper})
		pastUpper = ata.Constr(region.Constraint{Op: region.Greater, Comparand: iv.Upper})
	}
	inWindow := ata.And(withinLow, withinHigh)
	canWait := ata.Or(before, inWindow)
	return window{
		before:     before,
		withinLow:  withinLow,
		withinHigh: withinHigh,
		inWindow:   inWindow,
		canWait:    canWait,
		pastUpper:  pastUpper,
	}
}

// unfold is the one-step unfolding rule for a modal subformula's own
// location, for a given symbol: a self-loop guarded by clock constraints
// derived from the [a,b] window, next to the obligations due now.
func (b *builder) unfold(f *Formula, sym ata.Symbol) *ata.Formula {
	self := b.locationFor(f) // memoized; already registered
	w := windowOf(f.Interval)

	switch f.Kind {
	case KindFinally:
		body := f.Children[0]
		satisfyNow := ata.And(w.inWindow, b.ref(body, sym))
		keepWaiting := ata.And(w.canWait, ata.Loc(self))
		return ata.Or(satisfyNow, keepWaiting)

	case KindGlobally:
		body := f.Children[0]
		requireNow := ata.Or(w.before, ata.And(w.inWindow, b.ref(body, sym)))
		keepGoing := ata.And(requireNow, w.canWait, ata.Loc(self))
		return ata.Or(w.pastUpper, keepGoing)

	case KindUntil:
		left, right := f.Children[0], f.Children[1]
		satisfyNow := ata.And(w.inWindow, b.ref(right, sym))
		keepGoing := ata.And(w.canWait, b.ref(left, sym), ata.Loc(self))
		return ata.Or(satisfyNow, keepGoing)

	case KindDualUntil:
		left, right := f.Children[0], f.Children[1]
		mustHoldNow := b.ref(right, sym)
		dischargeNow := ata.And(w.inWindow, b.ref(left, sym))
		keepGoing := ata.And(w.canWait, ata.Loc(self))
		return ata.Or(w.pastUpper, ata.And(mustHoldNow, ata.Or(dischargeNow, keepGoing)))

	default:
		// non-modal root: no continuation, the formula is only checked at
		// this single instant.
		return b.step(f, sym)
	}
}
