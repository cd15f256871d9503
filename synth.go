// Package tacos synthesizes controllers for real-time plants: given a
// plant modeled as a timed automaton and a Metric Temporal Logic
// specification with a controller/environment action partition, it runs a
// two-player game search over the region abstraction of the synchronized
// plant and specification automaton, and extracts a controller that wins
// against every environment strategy.
package tacos

import (
	"context"

	"github.com/tacossynth/tacos/internal/controller"
	"github.com/tacossynth/tacos/internal/mtl"
	"github.com/tacossynth/tacos/internal/oracle"
	"github.com/tacossynth/tacos/internal/region"
	"github.com/tacossynth/tacos/internal/search"
	"github.com/tacossynth/tacos/internal/synerr"
	"github.com/tacossynth/tacos/internal/synlog"
	"github.com/tacossynth/tacos/internal/ta"
)

// Options tunes a synthesis run. The zero value is usable: a single
// worker, breadth-first expansion, maximum constant K = 0, and no logging;
// a negative MaxConstant infers K instead.
type Options struct {
	// ControllerActions are the controller-owned symbols; all other plant
	// actions belong to the environment.
	ControllerActions []ta.Symbol

	// Heuristic picks the expansion order: "bfs" (default), "dfs",
	// "random", or "composite".
	Heuristic string

	// RandomSeed seeds the "random" heuristic.
	RandomSeed int64

	// Workers is the expansion pool size; values below 1 mean one.
	Workers int

	// MaxConstant overrides the maximum constant K inferred from the
	// plant's guards and the specification's intervals. Negative means
	// infer.
	MaxConstant int

	// Log receives search diagnostics; nil discards them.
	Log *synlog.Logger

	// Observer, if set, receives the live search result as soon as the
	// run starts, for progress reporting.
	Observer func(*search.Result)
}

// Outcome is what a finished (or cancelled) synthesis run produced.
type Outcome struct {
	// Result is the search DAG, partial if the run was cancelled.
	Result *search.Result

	// Controller realizes a winning strategy; nil when none exists.
	Controller *ta.Automaton
}

// Synthesize runs the full pipeline: translate the specification, search
// the abstract game graph, and extract a controller from a winning root.
//
// An unsatisfiable specification is reported as an error of kind
// UnsatisfiableSpecification with the completed search attached to the
// Outcome; callers should treat it as an orderly result, not a failure.
// Cancellation of ctx surfaces as a Cancelled error with the partial
// search attached.
func Synthesize(ctx context.Context, plant *ta.Automaton, formula *mtl.Formula, opts Options) (*Outcome, error) {
	plantOracle := oracle.NewTAOracle(plant)

	k := region.MaxConstant(plantOracle, formula)
	if opts.MaxConstant >= 0 {
		k = opts.MaxConstant
	}

	aut, err := mtl.Translate(formula, nil)
	if err != nil {
		return nil, err
	}

	ctl := map[oracle.Symbol]bool{}
	for _, s := range opts.ControllerActions {
		ctl[s] = true
	}

	gen := &search.Generator{
		Oracle:     plantOracle,
		ATA:        aut,
		K:          k,
		Controller: ctl,
		Atoms:      formula.Atoms(),
	}

	heuristic, err := heuristicFor(opts.Heuristic, gen, opts.RandomSeed)
	if err != nil {
		return nil, err
	}

	d := &search.Driver{
		Generator: gen,
		Heuristic: heuristic,
		Workers:   opts.Workers,
		Log:       opts.Log,
		Observer:  opts.Observer,
	}

	res, err := d.Run(ctx)
	out := &Outcome{Result: res}
	if err != nil {
		return out, err
	}

	if res.Root.Label() != search.LabelTop {
		return out, synerr.Newf(synerr.UnsatisfiableSpecification,
			"no controller exists: search completed with root %s", res.Root.Label())
	}

	ctrl, err := controller.Extract(res, gen)
	if err != nil {
		return out, err
	}
	out.Controller = ctrl
	return out, nil
}

func heuristicFor(name string, gen *search.Generator, seed int64) (search.Heuristic, error) {
	switch name {
	case "", "bfs":
		return &search.BFSHeuristic{}, nil
	case "dfs":
		return &search.DFSHeuristic{}, nil
	case "random":
		return search.NewRandomHeuristic(seed), nil
	case "composite":
		return search.DefaultComposite(gen.ATA, gen.K), nil
	default:
		return nil, synerr.Newf(synerr.Configuration, "unknown heuristic %q (want bfs, dfs, random, or composite)", name)
	}
}
