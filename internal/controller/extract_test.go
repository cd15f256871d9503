package controller

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tacossynth/tacos/internal/mtl"
	"github.com/tacossynth/tacos/internal/oracle"
	"github.com/tacossynth/tacos/internal/region"
	"github.com/tacossynth/tacos/internal/search"
	"github.com/tacossynth/tacos/internal/synerr"
	"github.com/tacossynth/tacos/internal/ta"
	"github.com/tacossynth/tacos/internal/util"
)

func synthesize(t *testing.T, plant *ta.Automaton, f *mtl.Formula, k int, ctl ...oracle.Symbol) (*search.Result, *search.Generator) {
	t.Helper()
	aut, err := mtl.Translate(f, nil)
	require.NoError(t, err)
	owned := map[oracle.Symbol]bool{}
	for _, s := range ctl {
		owned[s] = true
	}
	gen := &search.Generator{
		Oracle:     oracle.NewTAOracle(plant),
		ATA:        aut,
		K:          k,
		Controller: owned,
		Atoms:      f.Atoms(),
	}
	d := &search.Driver{Generator: gen, Heuristic: &search.BFSHeuristic{}, Workers: 1}
	res, err := d.Run(context.Background())
	require.NoError(t, err)
	return res, gen
}

func Test_Extract_trivialWinningRoot(t *testing.T) {
	plant, err := ta.New(
		[]ta.Location{"s0"},
		nil,
		[]ta.Symbol{"a"},
		"s0",
		[]ta.Location{"s0"},
		[]ta.Transition{{Source: "s0", Symbol: "a", Target: "s0"}},
	)
	require.NoError(t, err)

	res, gen := synthesize(t, plant, mtl.Globally(mtl.Unbounded, mtl.True()), 0)
	ctrl, err := Extract(res, gen)
	require.NoError(t, err)

	// The root itself is winning: the controller may stop immediately.
	accepted, err := ctrl.AcceptsWord(nil)
	require.NoError(t, err)
	assert.True(t, accepted)
}

func Test_Extract_controllerPicksItsWinningAction(t *testing.T) {
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

	res, gen := synthesize(t, plant, mtl.Finally(mtl.Unbounded, mtl.Atom("at(s1)")), 0, "c_act")
	require.Equal(t, search.LabelTop, res.Root.Label())

	ctrl, err := Extract(res, gen)
	require.NoError(t, err)

	// The controller schedules c_act; the losing e_act edge is not taken.
	assert.Equal(t, []ta.Symbol{"c_act"}, ctrl.Alphabet())

	accepted, err := ctrl.AcceptsWord(ta.TimedWord{{Symbol: "c_act", Time: 0}})
	require.NoError(t, err)
	assert.True(t, accepted)
}

func Test_Extract_guardsRealizeTheIncrement(t *testing.T) {
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

	res, gen := synthesize(t, plant, mtl.Finally(mtl.Unbounded, mtl.Atom("a")), 1)
	require.Equal(t, search.LabelTop, res.Root.Label())

	ctrl, err := Extract(res, gen)
	require.NoError(t, err)

	// Firing at x = 0 and at x in (0, 1) are both winning; at x >= 1 the
	// guard x < 1 was never enabled, so the controller offers nothing.
	testCases := []struct {
		name   string
		word   ta.TimedWord
		expect bool
	}{
		{name: "fire at zero", word: ta.TimedWord{{Symbol: "a", Time: 0}}, expect: true},
		{name: "fire inside the open region", word: ta.TimedWord{{Symbol: "a", Time: 0.5}}, expect: true},
		{name: "fire too late", word: ta.TimedWord{{Symbol: "a", Time: 1.5}}, expect: false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			accepted, err := ctrl.AcceptsWord(tc.word)
			require.NoError(t, err)
			assert.Equal(t, tc.expect, accepted)
		})
	}
}

func Test_Extract_unsatisfiableRootIsAnError(t *testing.T) {
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

	res, gen := synthesize(t, plant, mtl.Finally(mtl.Unbounded, mtl.Atom("at(s1)")), 0)
	require.Equal(t, search.LabelBottom, res.Root.Label())

	_, err = Extract(res, gen)
	require.Error(t, err)
	assert.True(t, synerr.Is(err, synerr.UnsatisfiableSpecification))
}
