// Package ioformat reads and writes the plant, specification, and
// controller files the synthesis core exchanges with its collaborators.
// Two formats are supported for every entity: a compact self-describing
// binary encoding and a human-authorable TOML encoding; files are told
// apart by sniffing a magic prefix.
package ioformat

import (
	"fmt"

	"github.com/dekarrin/rezi"
	"github.com/tacossynth/tacos/internal/mtl"
	"github.com/tacossynth/tacos/internal/region"
	"github.com/tacossynth/tacos/internal/synerr"
	"github.com/tacossynth/tacos/internal/ta"
	"github.com/tacossynth/tacos/internal/util"
)

// Magic prefixes of the binary formats. The controller shares the plant's
// on-the-wire shape.
var (
	plantMagic = []byte("TACP\x01")
	specMagic  = []byte("TACS\x01")
)

type wireConstraint struct {
	Op        int
	Comparand int
}

func (w wireConstraint) MarshalBinary() ([]byte, error) {
	var b []byte
	b = append(b, rezi.EncInt(w.Op)...)
	b = append(b, rezi.EncInt(w.Comparand)...)
	return b, nil
}

func (w *wireConstraint) UnmarshalBinary(data []byte) error {
	var off, n int
	var err error
	if w.Op, n, err = rezi.DecInt(data[off:]); err != nil {
		return err
	}
	off += n
	if w.Comparand, _, err = rezi.DecInt(data[off:]); err != nil {
		return err
	}
	return nil
}

type wireGuardEntry struct {
	Clock      string
	Constraint wireConstraint
}

func (w wireGuardEntry) MarshalBinary() ([]byte, error) {
	var b []byte
	b = append(b, rezi.EncString(w.Clock)...)
	b = append(b, rezi.EncBinary(w.Constraint)...)
	return b, nil
}

func (w *wireGuardEntry) UnmarshalBinary(data []byte) error {
	var off, n int
	var err error
	if w.Clock, n, err = rezi.DecString(data[off:]); err != nil {
		return err
	}
	off += n
	if _, err = rezi.DecBinary(data[off:], &w.Constraint); err != nil {
		return err
	}
	return nil
}

type wireTransition struct {
	Source string
	Symbol string
	Target string
	Guard  []wireGuardEntry
	Resets []string
}

func (w wireTransition) MarshalBinary() ([]byte, error) {
	var b []byte
	b = append(b, rezi.EncString(w.Source)...)
	b = append(b, rezi.EncString(w.Symbol)...)
	b = append(b, rezi.EncString(w.Target)...)
	b = append(b, rezi.EncInt(len(w.Guard))...)
	for _, g := range w.Guard {
		b = append(b, rezi.EncBinary(g)...)
	}
	b = append(b, encStrings(w.Resets)...)
	return b, nil
}

func (w *wireTransition) UnmarshalBinary(data []byte) error {
	var off, n int
	var err error
	if w.Source, n, err = rezi.DecString(data[off:]); err != nil {
		return err
	}
	off += n
	if w.Symbol, n, err = rezi.DecString(data[off:]); err != nil {
		return err
	}
	off += n
	if w.Target, n, err = rezi.DecString(data[off:]); err != nil {
		return err
	}
	off += n
	var count int
	if count, n, err = rezi.DecInt(data[off:]); err != nil {
		return err
	}
	off += n
	w.Guard = make([]wireGuardEntry, count)
	for i := 0; i < count; i++ {
		if n, err = rezi.DecBinary(data[off:], &w.Guard[i]); err != nil {
			return err
		}
		off += n
	}
	if w.Resets, _, err = decStrings(data[off:]); err != nil {
		return err
	}
	return nil
}

type wirePlant struct {
	Locations   []string
	Clocks      []string
	Alphabet    []string
	Initial     string
	Final       []string
	Transitions []wireTransition
}

func (w wirePlant) MarshalBinary() ([]byte, error) {
	var b []byte
	b = append(b, encStrings(w.Locations)...)
	b = append(b, encStrings(w.Clocks)...)
	b = append(b, encStrings(w.Alphabet)...)
	b = append(b, rezi.EncString(w.Initial)...)
	b = append(b, encStrings(w.Final)...)
	b = append(b, rezi.EncInt(len(w.Transitions))...)
	for _, t := range w.Transitions {
		b = append(b, rezi.EncBinary(t)...)
	}
	return b, nil
}

func (w *wirePlant) UnmarshalBinary(data []byte) error {
	var off, n int
	var err error
	if w.Locations, n, err = decStrings(data[off:]); err != nil {
		return err
	}
	off += n
	if w.Clocks, n, err = decStrings(data[off:]); err != nil {
		return err
	}
	off += n
	if w.Alphabet, n, err = decStrings(data[off:]); err != nil {
		return err
	}
	off += n
	if w.Initial, n, err = rezi.DecString(data[off:]); err != nil {
		return err
	}
	off += n
	if w.Final, n, err = decStrings(data[off:]); err != nil {
		return err
	}
	off += n
	var count int
	if count, n, err = rezi.DecInt(data[off:]); err != nil {
		return err
	}
	off += n
	w.Transitions = make([]wireTransition, count)
	for i := 0; i < count; i++ {
		if n, err = rezi.DecBinary(data[off:], &w.Transitions[i]); err != nil {
			return err
		}
		off += n
	}
	return nil
}

type wireFormula struct {
	Kind     int
	Atom     string
	Lower    int
	Upper    int
	UpperInf bool
	Children []wireFormula
}

func (w wireFormula) MarshalBinary() ([]byte, error) {
	var b []byte
	b = append(b, rezi.EncInt(w.Kind)...)
	b = append(b, rezi.EncString(w.Atom)...)
	b = append(b, rezi.EncInt(w.Lower)...)
	b = append(b, rezi.EncInt(w.Upper)...)
	b = append(b, rezi.EncBool(w.UpperInf)...)
	b = append(b, rezi.EncInt(len(w.Children))...)
	for _, c := range w.Children {
		b = append(b, rezi.EncBinary(c)...)
	}
	return b, nil
}

func (w *wireFormula) UnmarshalBinary(data []byte) error {
	var off, n int
	var err error
	if w.Kind, n, err = rezi.DecInt(data[off:]); err != nil {
		return err
	}
	off += n
	if w.Atom, n, err = rezi.DecString(data[off:]); err != nil {
		return err
	}
	off += n
	if w.Lower, n, err = rezi.DecInt(data[off:]); err != nil {
		return err
	}
	off += n
	if w.Upper, n, err = rezi.DecInt(data[off:]); err != nil {
		return err
	}
	off += n
	if w.UpperInf, n, err = rezi.DecBool(data[off:]); err != nil {
		return err
	}
	off += n
	var count int
	if count, n, err = rezi.DecInt(data[off:]); err != nil {
		return err
	}
	off += n
	w.Children = make([]wireFormula, count)
	for i := 0; i < count; i++ {
		if n, err = rezi.DecBinary(data[off:], &w.Children[i]); err != nil {
			return err
		}
		off += n
	}
	return nil
}

type wireSpec struct {
	Formula           wireFormula
	ControllerActions []string
}

func (w wireSpec) MarshalBinary() ([]byte, error) {
	var b []byte
	b = append(b, rezi.EncBinary(w.Formula)...)
	b = append(b, encStrings(w.ControllerActions)...)
	return b, nil
}

func (w *wireSpec) UnmarshalBinary(data []byte) error {
	var off, n int
	var err error
	if n, err = rezi.DecBinary(data[off:], &w.Formula); err != nil {
		return err
	}
	off += n
	if w.ControllerActions, _, err = decStrings(data[off:]); err != nil {
		return err
	}
	return nil
}

func encStrings(ss []string) []byte {
	b := rezi.EncInt(len(ss))
	for _, s := range ss {
		b = append(b, rezi.EncString(s)...)
	}
	return b
}

func decStrings(data []byte) ([]string, int, error) {
	count, off, err := rezi.DecInt(data)
	if err != nil {
		return nil, 0, err
	}
	out := make([]string, count)
	for i := 0; i < count; i++ {
		var n int
		if out[i], n, err = rezi.DecString(data[off:]); err != nil {
			return nil, 0, err
		}
		off += n
	}
	return out, off, nil
}

// MarshalPlant renders a timed automaton in the binary plant format. The
// controller output uses the same shape.
func MarshalPlant(a *ta.Automaton) ([]byte, error) {
	w := plantToWire(a)
	body, err := w.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return append(append([]byte(nil), plantMagic...), body...), nil
}

// UnmarshalPlant parses the binary plant format back into a validated
// timed automaton.
func UnmarshalPlant(data []byte) (*ta.Automaton, error) {
	if len(data) < len(plantMagic) || string(data[:len(plantMagic)]) != string(plantMagic) {
		return nil, synerr.New(synerr.Configuration, "not a binary plant file (bad magic)")
	}
	var w wirePlant
	if err := w.UnmarshalBinary(data[len(plantMagic):]); err != nil {
		return nil, synerr.Wrap(err, synerr.Configuration, "malformed binary plant file")
	}
	return w.toAutomaton()
}

// MarshalSpec renders an MTL formula plus the controller-owned action
// partition in the binary spec format.
func MarshalSpec(f *mtl.Formula, controllerActions []ta.Symbol) ([]byte, error) {
	ctl := make([]string, len(controllerActions))
	for i, s := range controllerActions {
		ctl[i] = string(s)
	}
	w := wireSpec{Formula: formulaToWire(f), ControllerActions: ctl}
	body, err := w.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return append(append([]byte(nil), specMagic...), body...), nil
}

// UnmarshalSpec parses the binary spec format.
func UnmarshalSpec(data []byte) (*mtl.Formula, []ta.Symbol, error) {
	if len(data) < len(specMagic) || string(data[:len(specMagic)]) != string(specMagic) {
		return nil, nil, synerr.New(synerr.Configuration, "not a binary spec file (bad magic)")
	}
	var w wireSpec
	if err := w.UnmarshalBinary(data[len(specMagic):]); err != nil {
		return nil, nil, synerr.Wrap(err, synerr.Configuration, "malformed binary spec file")
	}
	f, err := w.Formula.toFormula()
	if err != nil {
		return nil, nil, err
	}
	ctl := make([]ta.Symbol, len(w.ControllerActions))
	for i, s := range w.ControllerActions {
		ctl[i] = ta.Symbol(s)
	}
	return f, ctl, nil
}

func plantToWire(a *ta.Automaton) wirePlant {
	w := wirePlant{Initial: string(a.Initial())}
	for _, l := range a.Locations() {
		w.Locations = append(w.Locations, string(l))
		if a.IsFinal(l) {
			w.Final = append(w.Final, string(l))
		}
	}
	for _, c := range a.Clocks() {
		w.Clocks = append(w.Clocks, string(c))
	}
	for _, s := range a.Alphabet() {
		w.Alphabet = append(w.Alphabet, string(s))
	}
	for _, t := range a.Transitions() {
		wt := wireTransition{
			Source: string(t.Source),
			Symbol: string(t.Symbol),
			Target: string(t.Target),
		}
		for _, clock := range util.OrderedKeys(t.Guard) {
			for _, c := range t.Guard[clock] {
				wt.Guard = append(wt.Guard, wireGuardEntry{
					Clock:      string(clock),
					Constraint: wireConstraint{Op: int(c.Op), Comparand: c.Comparand},
				})
			}
		}
		for _, r := range util.OrderedKeys(t.Resets) {
			wt.Resets = append(wt.Resets, string(r))
		}
		w.Transitions = append(w.Transitions, wt)
	}
	return w
}

func (w wirePlant) toAutomaton() (*ta.Automaton, error) {
	locations := make([]ta.Location, len(w.Locations))
	for i, l := range w.Locations {
		locations[i] = ta.Location(l)
	}
	clocks := make([]ta.Clock, len(w.Clocks))
	for i, c := range w.Clocks {
		clocks[i] = ta.Clock(c)
	}
	alphabet := make([]ta.Symbol, len(w.Alphabet))
	for i, s := range w.Alphabet {
		alphabet[i] = ta.Symbol(s)
	}
	final := make([]ta.Location, len(w.Final))
	for i, l := range w.Final {
		final[i] = ta.Location(l)
	}
	transitions := make([]ta.Transition, len(w.Transitions))
	for i, wt := range w.Transitions {
		var guard ta.Guard
		for _, g := range wt.Guard {
			if guard == nil {
				guard = ta.Guard{}
			}
			guard[ta.Clock(g.Clock)] = append(guard[ta.Clock(g.Clock)], region.Constraint{
				Op:        region.Op(g.Constraint.Op),
				Comparand: g.Constraint.Comparand,
			})
		}
		var resets util.KeySet[ta.Clock]
		for _, r := range wt.Resets {
			if resets == nil {
				resets = util.NewKeySet[ta.Clock]()
			}
			resets.Add(ta.Clock(r))
		}
		transitions[i] = ta.Transition{
			Source: ta.Location(wt.Source),
			Symbol: ta.Symbol(wt.Symbol),
			Target: ta.Location(wt.Target),
			Guard:  guard,
			Resets: resets,
		}
	}
	return ta.New(locations, clocks, alphabet, ta.Location(w.Initial), final, transitions)
}

func formulaToWire(f *mtl.Formula) wireFormula {
	w := wireFormula{
		Kind:     int(f.Kind),
		Atom:     f.Atom,
		Lower:    f.Interval.Lower,
		Upper:    f.Interval.Upper,
		UpperInf: f.Interval.UpperInf,
	}
	for _, c := range f.Children {
		w.Children = append(w.Children, formulaToWire(c))
	}
	return w
}

func (w wireFormula) toFormula() (*mtl.Formula, error) {
	kind := mtl.Kind(w.Kind)
	switch kind {
	case mtl.KindTrue, mtl.KindFalse, mtl.KindAtom, mtl.KindNotAtom, mtl.KindNot,
		mtl.KindAnd, mtl.KindOr, mtl.KindUntil, mtl.KindDualUntil,
		mtl.KindFinally, mtl.KindGlobally:
		// known kind
	default:
		return nil, synerr.Newf(synerr.Configuration, "unknown formula kind %d", w.Kind)
	}
	f := &mtl.Formula{
		Kind: kind,
		Atom: w.Atom,
		Interval: mtl.Interval{
			Lower:    w.Lower,
			Upper:    w.Upper,
			UpperInf: w.UpperInf,
		},
	}
	for i := range w.Children {
		c, err := w.Children[i].toFormula()
		if err != nil {
			return nil, fmt.Errorf("child %d: %w", i, err)
		}
		f.Children = append(f.Children, c)
	}
	return f, nil
}
