// Package golog implements a small program-semantics oracle: a library of
// named primitive actions guarded by preconditions over a string-keyed
// fact store, usable as a drop-in replacement for the in-memory TA wherever
// an oracle.SuccessorOracle is expected.
//
// Unlike the full Readylog semantics this is grounded on, there is no
// situation-calculus fluent solver: an Action's Precond/Effects are plain
// fact-store predicates, and "the remaining program" at any configuration
// is always the full action library filtered by precondition, mirroring a
// closed-loop reactive program rather than a fixed linear plan.
package golog

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/tacossynth/tacos/internal/oracle"
	"github.com/tacossynth/tacos/internal/synerr"
	"github.com/tacossynth/tacos/internal/ta"
)

// Clock is the single clock the Golog adapter exposes: a measure of time
// elapsed since the last executed action, reset on every step.
const Clock ta.Clock = "golog"

// Facts is a fact store: a fact is present and true, present and false, or
// absent (don't-care for precondition matching).
type Facts map[string]bool

func (f Facts) satisfies(precond Facts) bool {
	for k, want := range precond {
		if f[k] != want {
			return false
		}
	}
	return true
}

func (f Facts) apply(effects Facts) Facts {
	out := make(Facts, len(f)+len(effects))
	for k, v := range f {
		out[k] = v
	}
	for k, v := range effects {
		out[k] = v
	}
	return out
}

// encode renders a Facts map as a canonical, sorted string, used as the
// opaque ta.Location identity for a Golog configuration.
func (f Facts) encode() ta.Location {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%s=%t", k, f[k])
	}
	return ta.Location(sb.String())
}

func decode(loc ta.Location) Facts {
	out := Facts{}
	s := string(loc)
	if s == "" {
		return out
	}
	for _, pair := range strings.Split(s, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		out[kv[0]] = kv[1] == "true"
	}
	return out
}

// Actor names who may execute an action: the controller or the
// environment. The partition gates which of ctl_terminate/env_terminate
// get offered once the clock saturates.
type Actor int

const (
	Controller Actor = iota
	Environment
)

// Action is a primitive, named action with a precondition and effect over
// the fact store.
type Action struct {
	Name    string
	Args    []string
	Actor   Actor
	Precond Facts
	Effects Facts
}

// Symbol renders the action as the adapter's wire symbol, e.g. "foo(bar)"
// or "foo" if it takes no arguments (inverse of SplitSymbol).
func (a Action) Symbol() oracle.Symbol {
	if len(a.Args) == 0 {
		return oracle.Symbol(a.Name)
	}
	return oracle.Symbol(fmt.Sprintf("%s(%s)", a.Name, strings.Join(a.Args, ", ")))
}

var symbolPattern = regexp.MustCompile(`^\s*(\w+)\s*(?:\(\s*(.*?)\s*\))?\s*$`)
var argsPattern = regexp.MustCompile(`[^\s,]+`)

// SplitSymbol splits a wire symbol into its name and arguments, e.g.
// "foo(bar, baz)" -> ("foo", []string{"bar", "baz"}), "foo()" -> ("foo",
// nil).
func SplitSymbol(symbol string) (string, []string, error) {
	m := symbolPattern.FindStringSubmatch(symbol)
	if m == nil {
		return "", nil, synerr.Newf(synerr.Configuration, "malformed golog symbol %q", symbol)
	}
	name := m[1]
	argsStr := m[2]
	if argsStr == "" {
		return name, nil, nil
	}
	args := argsPattern.FindAllString(argsStr, -1)
	return name, args, nil
}

// Program is the static action library a Golog oracle steps through.
type Program struct {
	Actions []Action
	Initial Facts
	// Accept reports whether a fact store is an accepting configuration.
	Accept func(Facts) bool
}

// Oracle adapts a Program to oracle.SuccessorOracle.
type Oracle struct {
	program Program
}

func NewOracle(p Program) *Oracle { return &Oracle{program: p} }

func (o *Oracle) InitialConfiguration() oracle.Config {
	return oracle.Config{
		Location: o.program.Initial.encode(),
		Clocks:   map[ta.Clock]float64{Clock: 0},
	}
}

func (o *Oracle) enabled(facts Facts) []Action {
	var out []Action
	for _, a := range o.program.Actions {
		if facts.satisfies(a.Precond) {
			out = append(out, a)
		}
	}
	return out
}

func (o *Oracle) EnabledActions(cfg oracle.Config) []oracle.Symbol {
	facts := decode(cfg.Location)
	var out []oracle.Symbol
	for _, a := range o.enabled(facts) {
		out = append(out, a.Symbol())
	}
	return out
}

func (o *Oracle) Step(cfg oracle.Config, symbol oracle.Symbol) ([]oracle.Config, error) {
	facts := decode(cfg.Location)
	var out []oracle.Config
	for _, a := range o.enabled(facts) {
		if a.Symbol() != symbol {
			continue
		}
		next := facts.apply(a.Effects)
		out = append(out, oracle.Config{
			Location: next.encode(),
			Clocks:   map[ta.Clock]float64{Clock: 0},
		})
	}
	return out, nil
}

func (o *Oracle) IsAccepting(cfg oracle.Config) bool {
	if o.program.Accept == nil {
		return false
	}
	return o.program.Accept(decode(cfg.Location))
}

func (o *Oracle) Clocks() []ta.Clock { return []ta.Clock{Clock} }

func (o *Oracle) Constants() []int { return nil }

// ControllerActions returns every action symbol the controller may execute.
func (o *Oracle) ControllerActions() []oracle.Symbol {
	return o.actionsFor(Controller)
}

// EnvironmentActions returns every action symbol the environment may
// execute.
func (o *Oracle) EnvironmentActions() []oracle.Symbol {
	return o.actionsFor(Environment)
}

func (o *Oracle) actionsFor(actor Actor) []oracle.Symbol {
	var out []oracle.Symbol
	for _, a := range o.program.Actions {
		if a.Actor == actor {
			out = append(out, a.Symbol())
		}
	}
	return out
}

// Terminate returns the configuration reached by forcibly ending the
// program from cfg without changing its facts, used by the search package
// to synthesize the ctl_terminate/env_terminate transitions once the golog
// clock saturates.
func (o *Oracle) Terminate(cfg oracle.Config) oracle.Config {
	return oracle.Config{
		Location: cfg.Location,
		Clocks:   map[ta.Clock]float64{Clock: 0},
	}
}
