package tacos

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tacossynth/tacos/internal/mtl"
	"github.com/tacossynth/tacos/internal/synerr"
	"github.com/tacossynth/tacos/internal/ta"
)

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

func Test_Synthesize_producesAWinningController(t *testing.T) {
	out, err := Synthesize(context.Background(), forkPlant(t),
		mtl.Finally(mtl.Unbounded, mtl.Atom("at(s1)")),
		Options{ControllerActions: []ta.Symbol{"c_act"}, MaxConstant: -1})
	require.NoError(t, err)
	require.NotNil(t, out.Controller)

	accepted, err := out.Controller.AcceptsWord(ta.TimedWord{{Symbol: "c_act", Time: 0}})
	require.NoError(t, err)
	assert.True(t, accepted)
}

func Test_Synthesize_unsatisfiableIsOrderly(t *testing.T) {
	out, err := Synthesize(context.Background(), forkPlant(t),
		mtl.Finally(mtl.Unbounded, mtl.Atom("at(s1)")),
		Options{MaxConstant: -1})

	require.Error(t, err)
	assert.True(t, synerr.Is(err, synerr.UnsatisfiableSpecification))
	require.NotNil(t, out)
	assert.Nil(t, out.Controller)
	assert.NotNil(t, out.Result)
}

func Test_Synthesize_rejectsUnknownHeuristic(t *testing.T) {
	_, err := Synthesize(context.Background(), forkPlant(t),
		mtl.Globally(mtl.Unbounded, mtl.True()),
		Options{Heuristic: "oracle", MaxConstant: -1})
	require.Error(t, err)
	assert.True(t, synerr.Is(err, synerr.Configuration))
}
