package ioformat

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tacossynth/tacos/internal/mtl"
	"github.com/tacossynth/tacos/internal/region"
	"github.com/tacossynth/tacos/internal/synerr"
	"github.com/tacossynth/tacos/internal/ta"
	"github.com/tacossynth/tacos/internal/util"
)

func samplePlant(t *testing.T) *ta.Automaton {
	t.Helper()
	plant, err := ta.New(
		[]ta.Location{"s0", "s1"},
		[]ta.Clock{"x"},
		[]ta.Symbol{"go", "wait"},
		"s0",
		[]ta.Location{"s1"},
		[]ta.Transition{
			{
				Source: "s0", Symbol: "go", Target: "s1",
				Guard: ta.Guard{"x": {
					{Op: region.GreaterEqual, Comparand: 1},
					{Op: region.Less, Comparand: 3},
				}},
				Resets: util.KeySetOf([]ta.Clock{"x"}),
			},
			{Source: "s1", Symbol: "wait", Target: "s1"},
		},
	)
	require.NoError(t, err)
	return plant
}

func Test_MarshalPlant_roundTrip(t *testing.T) {
	plant := samplePlant(t)

	data, err := MarshalPlant(plant)
	require.NoError(t, err)

	got, err := UnmarshalPlant(data)
	require.NoError(t, err)

	assert.Equal(t, plant.Locations(), got.Locations())
	assert.Equal(t, plant.Clocks(), got.Clocks())
	assert.Equal(t, plant.Alphabet(), got.Alphabet())
	assert.Equal(t, plant.Initial(), got.Initial())
	assert.Equal(t, plant.Transitions(), got.Transitions())
	assert.True(t, got.IsFinal("s1"))
	assert.False(t, got.IsFinal("s0"))
}

func Test_MarshalSpec_roundTrip(t *testing.T) {
	f := mtl.Until(
		mtl.Atom("busy"),
		mtl.Bounded(1, 4),
		mtl.And(mtl.Atom("done"), mtl.Not(mtl.Atom("failed"))),
	)

	data, err := MarshalSpec(f, []ta.Symbol{"go"})
	require.NoError(t, err)

	got, ctl, err := UnmarshalSpec(data)
	require.NoError(t, err)
	assert.Equal(t, []ta.Symbol{"go"}, ctl)
	assert.Equal(t, f.String(), got.String())
}

func Test_UnmarshalPlant_rejectsForeignData(t *testing.T) {
	_, err := UnmarshalPlant([]byte("format = \"tacos-plant\"\n"))
	require.Error(t, err)
	assert.True(t, synerr.Is(err, synerr.Configuration))
}

const plantTOML = `
format = "tacos-plant"

[plant]
locations = ["s0", "s1"]
clocks = ["x"]
alphabet = ["go"]
initial = "s0"
final = ["s1"]

[[plant.transition]]
source = "s0"
symbol = "go"
target = "s1"
resets = ["x"]

[[plant.transition.guard]]
clock = "x"
op = "<"
comparand = 2
`

const specTOML = `
format = "tacos-spec"
controller_actions = ["go"]

[formula]
kind = "finally"
lower = 0
upper = 3

[[formula.children]]
kind = "atom"
atom = "go"
`

func Test_LoadPlant_sniffsTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plant.toml")
	require.NoError(t, os.WriteFile(path, []byte(plantTOML), 0644))

	plant, err := LoadPlant(path)
	require.NoError(t, err)
	assert.Equal(t, ta.Location("s0"), plant.Initial())
	assert.Equal(t, []ta.Symbol{"go"}, plant.Alphabet())

	trans := plant.Transitions()
	require.Len(t, trans, 1)
	assert.Equal(t, ta.Guard{"x": {{Op: region.Less, Comparand: 2}}}, trans[0].Guard)
	assert.True(t, trans[0].Resets.Has("x"))
}

func Test_LoadSpec_sniffsTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spec.toml")
	require.NoError(t, os.WriteFile(path, []byte(specTOML), 0644))

	f, ctl, err := LoadSpec(path)
	require.NoError(t, err)
	assert.Equal(t, []ta.Symbol{"go"}, ctl)
	require.Equal(t, mtl.KindFinally, f.Kind)
	assert.Equal(t, mtl.Bounded(0, 3), f.Interval)
	require.Len(t, f.Children, 1)
	assert.Equal(t, "go", f.Children[0].Atom)
}

func Test_LoadPlant_sniffsBinary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plant.bin")
	data, err := MarshalPlant(samplePlant(t))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	plant, err := LoadPlant(path)
	require.NoError(t, err)
	assert.Equal(t, samplePlant(t).Transitions(), plant.Transitions())
}

func Test_parseSpecTOML_validation(t *testing.T) {
	testCases := []struct {
		name string
		doc  string
	}{
		{name: "wrong format key", doc: "format = \"tacos-plant\"\n[formula]\nkind = \"true\"\n"},
		{name: "missing formula", doc: "format = \"tacos-spec\"\n"},
		{name: "unknown kind", doc: "format = \"tacos-spec\"\n[formula]\nkind = \"sometimes\"\n"},
		{name: "bad arity", doc: "format = \"tacos-spec\"\n[formula]\nkind = \"finally\"\n"},
		{name: "atom without name", doc: "format = \"tacos-spec\"\n[formula]\nkind = \"atom\"\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := parseSpecTOML([]byte(tc.doc))
			require.Error(t, err)
			assert.True(t, synerr.Is(err, synerr.Configuration))
		})
	}
}
