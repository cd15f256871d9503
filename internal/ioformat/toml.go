package ioformat

import (
	"github.com/BurntSushi/toml"
	"github.com/tacossynth/tacos/internal/mtl"
	"github.com/tacossynth/tacos/internal/region"
	"github.com/tacossynth/tacos/internal/synerr"
	"github.com/tacossynth/tacos/internal/ta"
	"github.com/tacossynth/tacos/internal/util"
)

// Format discriminators carried in every TOML file's top-level "format"
// key, the way tqw manifests name their own type.
const (
	FormatPlant = "tacos-plant"
	FormatSpec  = "tacos-spec"
)

type tomlTopLevel struct {
	Format            string       `toml:"format"`
	Plant             *tomlPlant   `toml:"plant"`
	Formula           *tomlFormula `toml:"formula"`
	ControllerActions []string     `toml:"controller_actions"`
}

type tomlPlant struct {
	Locations   []string         `toml:"locations"`
	Clocks      []string         `toml:"clocks"`
	Alphabet    []string         `toml:"alphabet"`
	Initial     string           `toml:"initial"`
	Final       []string         `toml:"final"`
	Transitions []tomlTransition `toml:"transition"`
}

type tomlTransition struct {
	Source string      `toml:"source"`
	Symbol string      `toml:"symbol"`
	Target string      `toml:"target"`
	Guard  []tomlGuard `toml:"guard"`
	Resets []string    `toml:"resets"`
}

type tomlGuard struct {
	Clock     string `toml:"clock"`
	Op        string `toml:"op"`
	Comparand int    `toml:"comparand"`
}

type tomlFormula struct {
	Kind      string        `toml:"kind"`
	Atom      string        `toml:"atom"`
	Lower     int           `toml:"lower"`
	Upper     int           `toml:"upper"`
	Unbounded bool          `toml:"unbounded"`
	Children  []tomlFormula `toml:"children"`
}

var opNames = map[string]region.Op{
	"<":  region.Less,
	"<=": region.LessEqual,
	"==": region.Equal,
	">=": region.GreaterEqual,
	">":  region.Greater,
}

var kindNames = map[string]mtl.Kind{
	"true":     mtl.KindTrue,
	"false":    mtl.KindFalse,
	"atom":     mtl.KindAtom,
	"not":      mtl.KindNot,
	"and":      mtl.KindAnd,
	"or":       mtl.KindOr,
	"until":    mtl.KindUntil,
	"release":  mtl.KindDualUntil,
	"finally":  mtl.KindFinally,
	"globally": mtl.KindGlobally,
}

// childCounts pins the arity of each TOML formula kind; -1 means any.
var childCounts = map[mtl.Kind]int{
	mtl.KindTrue:      0,
	mtl.KindFalse:     0,
	mtl.KindAtom:      0,
	mtl.KindNot:       1,
	mtl.KindAnd:       -1,
	mtl.KindOr:        -1,
	mtl.KindUntil:     2,
	mtl.KindDualUntil: 2,
	mtl.KindFinally:   1,
	mtl.KindGlobally:  1,
}

// parsePlantTOML parses a TOML plant document into a validated automaton.
func parsePlantTOML(data []byte) (*ta.Automaton, error) {
	var top tomlTopLevel
	if err := toml.Unmarshal(data, &top); err != nil {
		return nil, synerr.Wrap(err, synerr.Configuration, "malformed plant TOML")
	}
	if top.Format != FormatPlant {
		return nil, synerr.Newf(synerr.Configuration, "plant file declares format %q, want %q", top.Format, FormatPlant)
	}
	if top.Plant == nil {
		return nil, synerr.New(synerr.Configuration, "plant file has no [plant] table")
	}
	return top.Plant.toAutomaton()
}

// parseSpecTOML parses a TOML spec document into a formula and the
// controller-owned action list.
func parseSpecTOML(data []byte) (*mtl.Formula, []ta.Symbol, error) {
	var top tomlTopLevel
	if err := toml.Unmarshal(data, &top); err != nil {
		return nil, nil, synerr.Wrap(err, synerr.Configuration, "malformed spec TOML")
	}
	if top.Format != FormatSpec {
		return nil, nil, synerr.Newf(synerr.Configuration, "spec file declares format %q, want %q", top.Format, FormatSpec)
	}
	if top.Formula == nil {
		return nil, nil, synerr.New(synerr.Configuration, "spec file has no [formula] table")
	}
	f, err := top.Formula.toFormula()
	if err != nil {
		return nil, nil, err
	}
	ctl := make([]ta.Symbol, len(top.ControllerActions))
	for i, s := range top.ControllerActions {
		ctl[i] = ta.Symbol(s)
	}
	return f, ctl, nil
}

func (tp tomlPlant) toAutomaton() (*ta.Automaton, error) {
	locations := make([]ta.Location, len(tp.Locations))
	for i, l := range tp.Locations {
		locations[i] = ta.Location(l)
	}
	clocks := make([]ta.Clock, len(tp.Clocks))
	for i, c := range tp.Clocks {
		clocks[i] = ta.Clock(c)
	}
	alphabet := make([]ta.Symbol, len(tp.Alphabet))
	for i, s := range tp.Alphabet {
		alphabet[i] = ta.Symbol(s)
	}
	final := make([]ta.Location, len(tp.Final))
	for i, l := range tp.Final {
		final[i] = ta.Location(l)
	}

	transitions := make([]ta.Transition, len(tp.Transitions))
	for i, tt := range tp.Transitions {
		var guard ta.Guard
		for _, g := range tt.Guard {
			op, ok := opNames[g.Op]
			if !ok {
				return nil, synerr.Newf(synerr.Configuration, "transition %d: unknown comparator %q", i, g.Op)
			}
			if g.Comparand < 0 {
				return nil, synerr.Newf(synerr.Configuration, "transition %d: negative comparand %d", i, g.Comparand)
			}
			if guard == nil {
				guard = ta.Guard{}
			}
			guard[ta.Clock(g.Clock)] = append(guard[ta.Clock(g.Clock)], region.Constraint{Op: op, Comparand: g.Comparand})
		}
		var resets util.KeySet[ta.Clock]
		for _, r := range tt.Resets {
			if resets == nil {
				resets = util.NewKeySet[ta.Clock]()
			}
			resets.Add(ta.Clock(r))
		}
		transitions[i] = ta.Transition{
			Source: ta.Location(tt.Source),
			Symbol: ta.Symbol(tt.Symbol),
			Target: ta.Location(tt.Target),
			Guard:  guard,
			Resets: resets,
		}
	}
	return ta.New(locations, clocks, alphabet, ta.Location(tp.Initial), final, transitions)
}

func (tf tomlFormula) toFormula() (*mtl.Formula, error) {
	kind, ok := kindNames[tf.Kind]
	if !ok {
		return nil, synerr.Newf(synerr.Configuration, "unknown formula kind %q", tf.Kind)
	}
	if want := childCounts[kind]; want >= 0 && len(tf.Children) != want {
		return nil, synerr.Newf(synerr.Configuration, "formula kind %q wants %d children, has %d", tf.Kind, want, len(tf.Children))
	}
	if kind == mtl.KindAtom && tf.Atom == "" {
		return nil, synerr.New(synerr.Configuration, "atom formula is missing its atom name")
	}

	f := &mtl.Formula{
		Kind: kind,
		Atom: tf.Atom,
		Interval: mtl.Interval{
			Lower:    tf.Lower,
			Upper:    tf.Upper,
			UpperInf: tf.Unbounded,
		},
	}
	for i := range tf.Children {
		c, err := tf.Children[i].toFormula()
		if err != nil {
			return nil, err
		}
		f.Children = append(f.Children, c)
	}
	return f, nil
}
