package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tacossynth/tacos/internal/abword"
	"github.com/tacossynth/tacos/internal/ata"
	"github.com/tacossynth/tacos/internal/golog"
	"github.com/tacossynth/tacos/internal/mtl"
	"github.com/tacossynth/tacos/internal/oracle"
	"github.com/tacossynth/tacos/internal/region"
	"github.com/tacossynth/tacos/internal/ta"
	"github.com/tacossynth/tacos/internal/util"
)

// guardedPlant is a single location with a self-loop on "a" guarded by
// x < 1 that resets x.
func guardedPlant(t *testing.T) *ta.Automaton {
	t.Helper()
	plant, err := ta.New(
		[]ta.Location{"s0"},
		[]ta.Clock{"x"},
		[]ta.Symbol{"a"},
		"s0",
		[]ta.Location{"s0"},
		[]ta.Transition{{
			Source: "s0", Symbol: "a", Target: "s0",
			Guard:  ta.Guard{"x": {{Op: region.Less, Comparand: 1}}},
			Resets: util.KeySetOf([]ta.Clock{"x"}),
		}},
	)
	require.NoError(t, err)
	return plant
}

func newGenerator(t *testing.T, plant *ta.Automaton, f *mtl.Formula, k int, ctl ...oracle.Symbol) *Generator {
	t.Helper()
	aut, err := mtl.Translate(f, nil)
	require.NoError(t, err)
	owned := map[oracle.Symbol]bool{}
	for _, s := range ctl {
		owned[s] = true
	}
	return &Generator{
		Oracle:     oracle.NewTAOracle(plant),
		ATA:        aut,
		K:          k,
		Controller: owned,
		Atoms:      f.Atoms(),
	}
}

func Test_timeSuccessor_rotatesRegions(t *testing.T) {
	// x = 0, y = 0.5 with K = 1: the canonical time-successor sequence
	// walks both clocks through open and point regions into overflow.
	w := abword.Canonical(ta.Config{
		Location: "s0",
		Clocks:   map[ta.Clock]float64{"x": 0, "y": 0.5},
	}, ata.NewStates(), 1)

	var keys []string
	cur := w
	for i := 0; i < 8; i++ {
		keys = append(keys, cur.Key())
		next := timeSuccessor(cur, 1)
		if next.Equal(cur) {
			break
		}
		cur = next
	}

	assert.Equal(t, []string{
		"{TA(s0,x,0)}|{TA(s0,y,1)}", // initial
		"{TA(s0,x,1)}|{TA(s0,y,1)}", // x enters (0,1), still before y
		"{TA(s0,y,2)}|{TA(s0,x,1)}", // y reaches 1
		"{TA(s0,y,3)}|{TA(s0,x,1)}", // y passes K
		"{TA(s0,x,2),TA(s0,y,3)}",   // x reaches 1
		"{TA(s0,x,3),TA(s0,y,3)}",   // x passes K: saturated
	}, keys)

	assert.True(t, timeSuccessor(cur, 1).Equal(cur), "saturated word must be its own successor")
}

func Test_timeSuccessor_pinsSentinels(t *testing.T) {
	w := abword.Word{abword.Group{
		{Kind: abword.KindATA, ATALocation: locSatisfied, RegionIndex: 0},
	}}
	assert.True(t, timeSuccessor(w, 2).Equal(w))
}

func Test_Generator_timeIncrements_boundedByRegionCount(t *testing.T) {
	gen := newGenerator(t, guardedPlant(t), mtl.Finally(mtl.Unbounded, mtl.Atom("a")), 1)
	incs := gen.timeIncrements(gen.InitialWord())
	// x=0 and the ATA clock move together: 0, (0,1), 1, >1.
	assert.Len(t, incs, 4)
	assert.True(t, gen.saturated(incs[len(incs)-1]))
}

func Test_Generator_Successors_respectsGuards(t *testing.T) {
	gen := newGenerator(t, guardedPlant(t), mtl.Finally(mtl.Unbounded, mtl.Atom("a")), 1)

	succs, err := gen.Successors(gen.InitialWord())
	require.NoError(t, err)

	var actions []Action
	for _, s := range succs {
		actions = append(actions, s.Action)
	}
	// "a" is enabled at x = 0 and x in (0, 1) but not at x = 1 or beyond.
	assert.Equal(t, []Action{
		{Increment: 0, Symbol: "a"},
		{Increment: 1, Symbol: "a"},
	}, actions)
}

func Test_Generator_Successors_dischargesFinally(t *testing.T) {
	gen := newGenerator(t, guardedPlant(t), mtl.Finally(mtl.Unbounded, mtl.Atom("a")), 1)

	succs, err := gen.Successors(gen.InitialWord())
	require.NoError(t, err)
	require.NotEmpty(t, succs)

	// Reading "a" discharges F(a); the successor carries the satisfied
	// sentinel instead of a live obligation.
	for _, s := range succs {
		require.Len(t, s.Words, 1)
		sawSentinel := false
		for _, sym := range s.Words[0].Symbols() {
			if sym.Kind == abword.KindATA {
				assert.Equal(t, locSatisfied, sym.ATALocation)
				sawSentinel = true
			}
		}
		assert.True(t, sawSentinel)
	}
}

func Test_Generator_Successors_deterministic(t *testing.T) {
	gen := newGenerator(t, guardedPlant(t), mtl.Finally(mtl.Unbounded, mtl.Atom("a")), 1)
	w := gen.InitialWord()

	a, err := gen.Successors(w)
	require.NoError(t, err)
	b, err := gen.Successors(w)
	require.NoError(t, err)

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Action, b[i].Action)
		require.Equal(t, len(a[i].Words), len(b[i].Words))
		for j := range a[i].Words {
			assert.Equal(t, a[i].Words[j].Key(), b[i].Words[j].Key())
		}
	}
}

func Test_Generator_violatedOnDeadReading(t *testing.T) {
	// G(b) violated by reading "a": the ATA step has no model left and the
	// successor carries the violated sentinel.
	plant, err := ta.New(
		[]ta.Location{"s0"},
		nil,
		[]ta.Symbol{"a"},
		"s0",
		[]ta.Location{"s0"},
		[]ta.Transition{{Source: "s0", Symbol: "a", Target: "s0"}},
	)
	require.NoError(t, err)
	gen := newGenerator(t, plant, mtl.Globally(mtl.Unbounded, mtl.Atom("b")), 0)

	succs, err := gen.Successors(gen.InitialWord())
	require.NoError(t, err)
	require.NotEmpty(t, succs)
	require.Len(t, succs[0].Words, 1)
	assert.True(t, gen.violated(succs[0].Words[0]))
}

func Test_Generator_terminationExtension(t *testing.T) {
	prog := golog.Program{
		Actions: []golog.Action{
			{Name: "work", Actor: golog.Controller},
			{Name: "observe", Actor: golog.Environment},
		},
		Initial: golog.Facts{},
	}
	o := golog.NewOracle(prog)
	f := mtl.Finally(mtl.Unbounded, mtl.Atom("terminated"))
	aut, err := mtl.Translate(f, nil)
	require.NoError(t, err)
	gen := &Generator{
		Oracle:     o,
		ATA:        aut,
		K:          1,
		Controller: map[oracle.Symbol]bool{"work": true},
		Atoms:      f.Atoms(),
	}

	succs, err := gen.Successors(gen.InitialWord())
	require.NoError(t, err)

	var sawCtl, sawEnv bool
	for _, s := range succs {
		switch s.Action.Symbol {
		case oracle.CtlTerminate:
			sawCtl = true
		case oracle.EnvTerminate:
			sawEnv = true
		}
	}
	assert.True(t, sawCtl, "environment action enabled, so the controller may terminate")
	assert.True(t, sawEnv, "controller action enabled, so the environment may terminate")
}

func Test_Generator_clocklessPlantKeepsLocation(t *testing.T) {
	// Two clockless locations must abstract to distinct words.
	plant, err := ta.New(
		[]ta.Location{"s0", "s1"},
		nil,
		[]ta.Symbol{"go"},
		"s0",
		[]ta.Location{"s1"},
		[]ta.Transition{{Source: "s0", Symbol: "go", Target: "s1"}},
	)
	require.NoError(t, err)
	gen := newGenerator(t, plant, mtl.Globally(mtl.Unbounded, mtl.True()), 0)

	w0 := gen.canonicalize(oracle.Config{Location: "s0"}, sentinel(locSatisfied))
	w1 := gen.canonicalize(oracle.Config{Location: "s1"}, sentinel(locSatisfied))
	assert.NotEqual(t, w0.Key(), w1.Key())
}
