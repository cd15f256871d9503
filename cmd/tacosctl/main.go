/*
Tacosctl synthesizes a controller for a timed plant against an MTL
specification.

It reads a plant file (a timed automaton) and a specification file (an MTL
formula plus the controller-owned action partition), runs the symbolic game
search, and writes the winning controller if one exists.

Usage:

	tacosctl [flags]

The flags are:

	-v, --version
		Give the current version of tacosctl and then exit.

	--plant FILE
		The plant file, binary or TOML. Required.

	--spec FILE
		The specification file, binary or TOML. Required.

	-o, --controller FILE
		Write the synthesized controller to FILE in the binary plant
		format.

	--controller-dot FILE
		Write a Graphviz DOT rendering of the controller to FILE.

	--visualize-plant FILE
		Write a rendering of the plant to FILE (.png via the dot binary,
		DOT text otherwise).

	--visualize-search-tree FILE
		Write a rendering of the search DAG to FILE, including after
		cancellation or an unsatisfiable result.

	-c, --controller-action ACTION
		Mark ACTION as controller-owned, in addition to any the spec file
		declares. May be repeated. All other actions are owned by the
		environment.

	--heuristic NAME
		Expansion order: bfs, dfs, random, or composite. Defaults to bfs.

	--single-threaded
		Expand with a single worker for reproducible runs.

	--max-constant K
		Override the maximum constant inferred from the plant's guards and
		the specification's intervals.

	--timeout DURATION
		Cancel the search after the given duration.

	--control-addr ADDR
		Serve GET /status and a token-gated POST /cancel on ADDR for the
		duration of the search. The cancel secret is printed to stderr.

	--interactive
		After the search, explore the resulting DAG in a small REPL
		instead of exiting immediately.

A search that completes without finding a controller is not an error: the
program reports the specification as unsatisfiable and exits 0. Fatal
problems (bad input, cancellation before the root resolved) exit 1.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/pflag"
	"github.com/tacossynth/tacos"
	"github.com/tacossynth/tacos/internal/ctlserver"
	"github.com/tacossynth/tacos/internal/dot"
	"github.com/tacossynth/tacos/internal/ioformat"
	"github.com/tacossynth/tacos/internal/search"
	"github.com/tacossynth/tacos/internal/synerr"
	"github.com/tacossynth/tacos/internal/synlog"
	"github.com/tacossynth/tacos/internal/ta"
	"github.com/tacossynth/tacos/internal/version"
)

const (

	// ExitSuccess indicates a successful run: a controller was written, or
	// the search completed and reported the specification unsatisfiable.
	ExitSuccess = iota

	// ExitError indicates a fatal problem: bad configuration, a broken
	// input file, or a search cancelled before the root resolved.
	ExitError
)

var (
	returnCode         int            = ExitSuccess
	flagVersion        *bool          = pflag.BoolP("version", "v", false, "Gives the version info")
	plantFile          *string        = pflag.String("plant", "", "The plant file (timed automaton), binary or TOML")
	specFile           *string        = pflag.String("spec", "", "The specification file (MTL formula), binary or TOML")
	controllerFile     *string        = pflag.StringP("controller", "o", "", "Write the synthesized controller to this file")
	controllerDot      *string        = pflag.String("controller-dot", "", "Write a DOT rendering of the controller to this file")
	visualizePlant     *string        = pflag.String("visualize-plant", "", "Write a rendering of the plant to this file")
	visualizeTree      *string        = pflag.String("visualize-search-tree", "", "Write a rendering of the search DAG to this file")
	controllerActions  *[]string      = pflag.StringArrayP("controller-action", "c", nil, "Mark this action controller-owned; may be repeated")
	heuristicName      *string        = pflag.String("heuristic", "bfs", "Expansion heuristic: bfs, dfs, random, or composite")
	singleThreaded     *bool          = pflag.Bool("single-threaded", false, "Expand with a single worker for reproducible runs")
	maxConstant        *int           = pflag.Int("max-constant", -1, "Override the inferred maximum constant K")
	timeout            *time.Duration = pflag.Duration("timeout", 0, "Cancel the search after this duration")
	controlAddr        *string        = pflag.String("control-addr", "", "Serve /status and /cancel on this address during the search")
	interactiveExplore *bool          = pflag.Bool("interactive", false, "Explore the search DAG in a REPL after the search")
)

func main() {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			// we are panicking, make sure we dont lose the panic just because
			// we checked
			panic(fmt.Sprintf("unrecoverable panic occured: %v", panicErr))
		} else {
			os.Exit(returnCode)
		}
	}()

	pflag.Parse()

	if *flagVersion {
		fmt.Printf("%s\n", version.Current)
		return
	}

	if *plantFile == "" || *specFile == "" {
		fmt.Fprintf(os.Stderr, "ERROR: --plant and --spec are required\n")
		returnCode = ExitError
		return
	}

	if err := run(synlog.Default(os.Stderr)); err != nil {
		if synerr.Is(err, synerr.UnsatisfiableSpecification) {
			// an orderly outcome, not a failure
			fmt.Fprintf(os.Stdout, "specification is unsatisfiable: %s\n", err.Error())
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err.Error())
		returnCode = ExitError
		return
	}
}

func run(log *synlog.Logger) error {
	plant, err := ioformat.LoadPlant(*plantFile)
	if err != nil {
		return err
	}
	formula, specCtl, err := ioformat.LoadSpec(*specFile)
	if err != nil {
		return err
	}
	ctl, err := controllerPartition(plant, specCtl, *controllerActions)
	if err != nil {
		return err
	}

	if *visualizePlant != "" {
		if err := writeRendering(*visualizePlant, dot.TA(plant)); err != nil {
			return err
		}
	}

	workers := runtime.NumCPU()
	if *singleThreaded {
		workers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if *timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	var live atomic.Pointer[search.Result]
	if *controlAddr != "" {
		if err := startControlServer(*controlAddr, &live, cancel, log); err != nil {
			return err
		}
	}

	out, synthErr := tacos.Synthesize(ctx, plant, formula, tacos.Options{
		ControllerActions: ctl,
		Heuristic:         *heuristicName,
		RandomSeed:        time.Now().UnixNano(),
		Workers:           workers,
		MaxConstant:       *maxConstant,
		Log:               log,
		Observer:          func(r *search.Result) { live.Store(r) },
	})

	if out != nil && out.Result != nil && *visualizeTree != "" {
		if err := writeRendering(*visualizeTree, dot.Tree(out.Result.Context)); err != nil {
			return err
		}
	}

	if synthErr != nil {
		if synerr.Is(synthErr, synerr.UnsatisfiableSpecification) && *interactiveExplore {
			if err := explore(out.Result); err != nil {
				return err
			}
		}
		return synthErr
	}

	log.Info().
		Str("run", out.Result.RunID.String()).
		Int("locations", len(out.Controller.Locations())).
		Log("controller synthesized")

	if *controllerFile != "" {
		if err := ioformat.WriteController(*controllerFile, out.Controller); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "controller written to %s\n", *controllerFile)
	}
	if *controllerDot != "" {
		if err := writeRendering(*controllerDot, dot.TA(out.Controller)); err != nil {
			return err
		}
	}

	if *interactiveExplore {
		return explore(out.Result)
	}
	return nil
}

// controllerPartition merges the spec file's controller-owned actions with
// the -c flags and checks every one against the plant alphabet.
func controllerPartition(plant *ta.Automaton, fromSpec []ta.Symbol, fromFlags []string) ([]ta.Symbol, error) {
	alphabet := map[ta.Symbol]bool{}
	for _, s := range plant.Alphabet() {
		alphabet[s] = true
	}

	seen := map[ta.Symbol]bool{}
	var ctl []ta.Symbol
	add := func(sym ta.Symbol, origin string) error {
		if !alphabet[sym] {
			return synerr.Newf(synerr.Configuration, "%s names unknown action %q", origin, sym)
		}
		if !seen[sym] {
			seen[sym] = true
			ctl = append(ctl, sym)
		}
		return nil
	}
	for _, s := range fromSpec {
		if err := add(s, "spec file"); err != nil {
			return nil, err
		}
	}
	for _, s := range fromFlags {
		if err := add(ta.Symbol(s), "-c"); err != nil {
			return nil, err
		}
	}
	return ctl, nil
}

// writeRendering writes DOT text, or a PNG when the target name asks for
// one.
func writeRendering(path, src string) error {
	if strings.HasSuffix(path, ".png") {
		return dot.RenderPNG(src, path)
	}
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		return synerr.Wrapf(err, synerr.Configuration, "cannot write %q", path)
	}
	return nil
}

func startControlServer(addr string, live *atomic.Pointer[search.Result], cancel context.CancelFunc, log *synlog.Logger) error {
	status := func() ctlserver.Status {
		res := live.Load()
		if res == nil {
			return ctlserver.Status{RootLabel: search.LabelUnlabeled.String()}
		}
		label := res.Root.Label()
		return ctlserver.Status{
			RunID:     res.RunID.String(),
			Nodes:     res.Context.Len(),
			RootLabel: label.String(),
			Done:      label != search.LabelUnlabeled,
		}
	}
	srv, secret, err := ctlserver.New(status, cancel, log)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "control server on %s; cancel secret: %s\n", addr, secret)
	go func() {
		if err := http.ListenAndServe(addr, srv.Router()); err != nil {
			log.Err().Err(err).Log("control server stopped")
		}
	}()
	return nil
}
