package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tacossynth/tacos/internal/mtl"
	"github.com/tacossynth/tacos/internal/region"
	"github.com/tacossynth/tacos/internal/synerr"
	"github.com/tacossynth/tacos/internal/ta"
)

// forkPlant lets the controller move to the accepting s1 and the
// environment to the dead-end s2.
func forkPlant(t *testing.T) *ta.Automaton {
	t.Helper()
	plant, err := ta.New(
		[]ta.Location{"s0", "s1", "s2"},
		nil,
		[]ta.Symbol{"c_act", "e_act"},
		"s0",
		[]ta.Location{"s1"},
		[]ta.Transition{
			{Source: "s0", Symbol: "c_act", Target: "s1"},
			{Source: "s0", Symbol: "e_act", Target: "s2"},
		},
	)
	require.NoError(t, err)
	return plant
}

func runSearch(t *testing.T, gen *Generator, workers int) *Result {
	t.Helper()
	d := &Driver{Generator: gen, Heuristic: &BFSHeuristic{}, Workers: workers}
	res, err := d.Run(context.Background())
	require.NoError(t, err)
	return res
}

func Test_Driver_trivialPlantIsImmediatelyWinning(t *testing.T) {
	// A clockless self-loop with globally(true) is won without expanding
	// anything.
	plant, err := ta.New(
		[]ta.Location{"s0"},
		nil,
		[]ta.Symbol{"a"},
		"s0",
		[]ta.Location{"s0"},
		[]ta.Transition{{Source: "s0", Symbol: "a", Target: "s0"}},
	)
	require.NoError(t, err)
	gen := newGenerator(t, plant, mtl.Globally(mtl.Unbounded, mtl.True()), 0)

	res := runSearch(t, gen, 1)
	assert.Equal(t, LabelTop, res.Root.Label())
	assert.Equal(t, StateGood, res.Root.State())
	assert.Equal(t, 1, res.Context.Len())
	assert.EqualValues(t, 0, res.Expanded)
}

func Test_Driver_guardedClockIsWinning(t *testing.T) {
	// The guarded self-loop satisfies finally(a).
	gen := newGenerator(t, guardedPlant(t), mtl.Finally(mtl.Unbounded, mtl.Atom("a")), 1)
	res := runSearch(t, gen, 1)
	assert.Equal(t, LabelTop, res.Root.Label())
}

func Test_Driver_controllerSchedulesItsAction(t *testing.T) {
	// With c_act controller-owned, the controller forces s1.
	gen := newGenerator(t, forkPlant(t), mtl.Finally(mtl.Unbounded, mtl.Atom("at(s1)")), 0, "c_act")
	res := runSearch(t, gen, 1)
	assert.Equal(t, LabelTop, res.Root.Label())
}

func Test_Driver_environmentOwnsEverything(t *testing.T) {
	// With no controller-owned actions, the environment forces the
	// dead-end s2 and the specification is unsatisfiable.
	gen := newGenerator(t, forkPlant(t), mtl.Finally(mtl.Unbounded, mtl.Atom("at(s1)")), 0)
	res := runSearch(t, gen, 1)
	assert.Equal(t, LabelBottom, res.Root.Label())
}

// overflowGenerator pins K to 2 while the specification window starts
// at 5, so the saturating clock can never reach the window.
func overflowGenerator(t *testing.T) *Generator {
	t.Helper()
	plant, err := ta.New(
		[]ta.Location{"s0"},
		[]ta.Clock{"x"},
		[]ta.Symbol{"a"},
		"s0",
		[]ta.Location{"s0"},
		[]ta.Transition{{Source: "s0", Symbol: "a", Target: "s0"}},
	)
	require.NoError(t, err)
	return newGenerator(t, plant, mtl.Finally(mtl.Bounded(5, 6), mtl.Atom("p")), 2)
}

func Test_Driver_overflowSearchStaysUnresolved(t *testing.T) {
	gen := overflowGenerator(t)
	res := runSearch(t, gen, 1)

	// The frontier empties without the root resolving: no finite winning
	// strategy exists, which callers interpret as BOTTOM.
	assert.Equal(t, LabelUnlabeled, res.Root.Label())
	assert.False(t, res.Cancelled)

	sawOverflow := false
	for _, n := range res.Context.Nodes() {
		for _, w := range n.Words() {
			for _, sym := range w.Symbols() {
				if region.IsOverflow(sym.RegionIndex, gen.K) {
					sawOverflow = true
				}
			}
		}
	}
	assert.True(t, sawOverflow, "the search must reach the overflow class")
}

func Test_Driver_cancellation(t *testing.T) {
	gen := overflowGenerator(t)
	d := &Driver{Generator: gen, Heuristic: &BFSHeuristic{}, Workers: 1}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := d.Run(ctx)

	require.Error(t, err)
	assert.True(t, synerr.Is(err, synerr.Cancelled))
	require.NotNil(t, res)
	assert.True(t, res.Cancelled)
	assert.Equal(t, LabelUnlabeled, res.Root.Label())
}

func Test_Driver_deterministicAcrossRuns(t *testing.T) {
	a := runSearch(t, newGenerator(t, forkPlant(t), mtl.Finally(mtl.Unbounded, mtl.Atom("at(s1)")), 0, "c_act"), 1)
	b := runSearch(t, newGenerator(t, forkPlant(t), mtl.Finally(mtl.Unbounded, mtl.Atom("at(s1)")), 0, "c_act"), 1)

	assert.Equal(t, a.Context.Len(), b.Context.Len())
	assert.Equal(t, a.Root.Label(), b.Root.Label())
	for _, n := range a.Context.Nodes() {
		m := b.Context.Node(n.ID())
		require.NotNil(t, m)
		assert.Equal(t, n.Key(), m.Key())
		assert.Equal(t, n.Label(), m.Label())
	}
}

func Test_Driver_concurrentWorkersAgreeWithSingleThreaded(t *testing.T) {
	single := runSearch(t, newGenerator(t, guardedPlant(t), mtl.Finally(mtl.Unbounded, mtl.Atom("a")), 1), 1)
	pooled := runSearch(t, newGenerator(t, guardedPlant(t), mtl.Finally(mtl.Unbounded, mtl.Atom("a")), 1), 4)

	// Label propagation is a monotone fixed point: the root's final label
	// is independent of worker interleaving.
	assert.Equal(t, single.Root.Label(), pooled.Root.Label())
}

func Test_Driver_heuristicsAllResolve(t *testing.T) {
	heuristics := map[string]func(gen *Generator) Heuristic{
		"bfs":       func(*Generator) Heuristic { return &BFSHeuristic{} },
		"dfs":       func(*Generator) Heuristic { return &DFSHeuristic{} },
		"random":    func(*Generator) Heuristic { return NewRandomHeuristic(42) },
		"composite": func(g *Generator) Heuristic { return DefaultComposite(g.ATA, g.K) },
	}
	for name, mk := range heuristics {
		t.Run(name, func(t *testing.T) {
			gen := newGenerator(t, forkPlant(t), mtl.Finally(mtl.Unbounded, mtl.Atom("at(s1)")), 0, "c_act")
			d := &Driver{Generator: gen, Heuristic: mk(gen), Workers: 1}
			res, err := d.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, LabelTop, res.Root.Label())
		})
	}
}

func Test_Driver_nodesAreDeduplicatedIntoADAG(t *testing.T) {
	gen := newGenerator(t, guardedPlant(t), mtl.Finally(mtl.Unbounded, mtl.Atom("a")), 1)
	res := runSearch(t, gen, 1)

	// Both (0, a) and (1, a) lead to the same reset configuration; the
	// child node is shared and carries both incoming actions.
	root := res.Root
	actions := root.Actions()
	require.Len(t, actions, 2)
	c0 := root.ChildrenFor(actions[0])
	c1 := root.ChildrenFor(actions[1])
	require.Len(t, c0, 1)
	require.Len(t, c1, 1)
	assert.Equal(t, c0[0], c1[0])

	child := res.Context.Node(c0[0])
	assert.ElementsMatch(t, []Action{{0, "a"}, {1, "a"}}, child.IncomingActions())
	assert.NoError(t, res.Context.Validate())
}

func Test_Driver_nodeIdentityMatchesWordSet(t *testing.T) {
	gen := newGenerator(t, forkPlant(t), mtl.Finally(mtl.Unbounded, mtl.Atom("at(s1)")), 0, "c_act")
	res := runSearch(t, gen, 1)
	for _, n := range res.Context.Nodes() {
		require.NotEmpty(t, n.Words())
		assert.Equal(t, wordSetKey(n.Words()), n.Key())
	}
}
