// Package oracle defines the duck-typed "TA-like" capability the search
// engine depends on instead of a concrete timed automaton, so that a
// swappable plant (the in-memory TA, or the Golog program semantics) can
// sit behind the same successor-generation and canonicalization
// machinery.
package oracle

import "github.com/tacossynth/tacos/internal/ta"

// Config is a plant configuration: an opaque location paired with a named
// clock valuation. Both the in-memory TA and the Golog front-end produce
// this same shape (for Golog, Location encodes the fact store as an
// opaque string; see internal/golog), so it is
// reused directly rather than introduced as a second parallel type.
type Config = ta.Config

// Symbol is an alphabet symbol, shared with package ta.
type Symbol = ta.Symbol

// SuccessorOracle is the capability the search engine (package search)
// requires of a plant: an initial configuration, the actions enabled from
// a configuration, a step function, and an acceptance predicate, plus
// enough static information (its clock set and the integer constants
// appearing in its guards) for region abstraction and K inference to work
// without depending on a concrete TA.
type SuccessorOracle interface {
	// InitialConfiguration returns the plant's starting configuration.
	InitialConfiguration() Config

	// EnabledActions returns every symbol with at least one enabled
	// successor from cfg.
	EnabledActions(cfg Config) []Symbol

	// Step returns every successor configuration reachable from cfg by
	// reading symbol.
	Step(cfg Config, symbol Symbol) ([]Config, error)

	// IsAccepting reports whether cfg is a final configuration.
	IsAccepting(cfg Config) bool

	// Clocks returns every clock name the plant's configurations may
	// mention, used so the canonical AB-word can be built to cover every
	// plant clock even if a given configuration's valuation map omits one
	// that happens to sit at its default.
	Clocks() []ta.Clock

	// Constants returns every integer constant appearing in the plant's
	// own guards, for K inference (region.MaxConstant).
	Constants() []int
}

// CtlTerminate and EnvTerminate are the symbols synthesized once the
// saturating plant clock reaches its maximum region, letting the
// controller or the environment end the run respectively.
const (
	CtlTerminate Symbol = "ctl_terminate"
	EnvTerminate Symbol = "env_terminate"
)

// Terminator is an optional capability a SuccessorOracle may implement to
// support the termination extension: once the saturating clock reaches
// its maximum region index, the search package offers a ctl_terminate
// action (if any environment action is enabled) and an env_terminate
// action (if any controller action is enabled), each leading to Terminate's
// result (package golog implements this).
type Terminator interface {
	ControllerActions() []Symbol
	EnvironmentActions() []Symbol
	Terminate(cfg Config) Config
}

// TAOracle adapts a package ta Automaton to SuccessorOracle.
type TAOracle struct {
	Automaton *ta.Automaton
}

func NewTAOracle(a *ta.Automaton) *TAOracle { return &TAOracle{Automaton: a} }

func (o *TAOracle) InitialConfiguration() Config { return o.Automaton.InitialConfig() }

func (o *TAOracle) EnabledActions(cfg Config) []Symbol {
	var out []Symbol
	for _, sym := range o.Automaton.Alphabet() {
		succs, err := o.Automaton.Successors(cfg, sym)
		if err == nil && len(succs) > 0 {
			out = append(out, sym)
		}
	}
	return out
}

func (o *TAOracle) Step(cfg Config, symbol Symbol) ([]Config, error) {
	return o.Automaton.Successors(cfg, symbol)
}

func (o *TAOracle) IsAccepting(cfg Config) bool { return o.Automaton.IsFinal(cfg.Location) }

func (o *TAOracle) Clocks() []ta.Clock { return o.Automaton.Clocks() }

func (o *TAOracle) Constants() []int { return o.Automaton.Constants() }
