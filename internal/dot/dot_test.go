package dot

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tacossynth/tacos/internal/mtl"
	"github.com/tacossynth/tacos/internal/oracle"
	"github.com/tacossynth/tacos/internal/region"
	"github.com/tacossynth/tacos/internal/search"
	"github.com/tacossynth/tacos/internal/ta"
	"github.com/tacossynth/tacos/internal/util"
)

func samplePlant(t *testing.T) *ta.Automaton {
	t.Helper()
	plant, err := ta.New(
		[]ta.Location{"idle", "busy"},
		[]ta.Clock{"x"},
		[]ta.Symbol{"start"},
		"idle",
		[]ta.Location{"busy"},
		[]ta.Transition{{
			Source: "idle", Symbol: "start", Target: "busy",
			Guard:  ta.Guard{"x": {{Op: region.Less, Comparand: 2}}},
			Resets: util.KeySetOf([]ta.Clock{"x"}),
		}},
	)
	require.NoError(t, err)
	return plant
}

func Test_TA_rendersLocationsAndEdges(t *testing.T) {
	out := TA(samplePlant(t))

	assert.True(t, strings.HasPrefix(out, "digraph ta {"))
	assert.Contains(t, out, `"idle" [label="idle"];`)
	assert.Contains(t, out, `"busy" [label="busy" shape=doublecircle];`)
	assert.Contains(t, out, `__init -> "idle";`)
	assert.Contains(t, out, `"idle" -> "busy"`)
	assert.Contains(t, out, "start / x < 2 / reset x")
}

func Test_ATA_rendersTransitionsAsFormulaBoxes(t *testing.T) {
	aut, err := mtl.Translate(mtl.Finally(mtl.Unbounded, mtl.Atom("start")), nil)
	require.NoError(t, err)

	out := ATA(aut)
	assert.True(t, strings.HasPrefix(out, "digraph ata {"))
	assert.Contains(t, out, "shape=box")
	assert.Contains(t, out, "∅")
}

func Test_Tree_rendersLabeledDAG(t *testing.T) {
	aut, err := mtl.Translate(mtl.Finally(mtl.Unbounded, mtl.Atom("start")), nil)
	require.NoError(t, err)
	gen := &search.Generator{
		Oracle: oracle.NewTAOracle(samplePlant(t)),
		ATA:    aut,
		K:      2,
		Atoms:  []string{"start"},
	}
	d := &search.Driver{Generator: gen, Heuristic: &search.BFSHeuristic{}, Workers: 1}
	res, err := d.Run(context.Background())
	require.NoError(t, err)

	out := Tree(res.Context)
	assert.True(t, strings.HasPrefix(out, "digraph searchtree {"))
	assert.Contains(t, out, "n0 [label=")
	assert.Contains(t, out, "GOOD")
	assert.Contains(t, out, "(0, start)")
}

func Test_labelText_undoDropsTrailingSeparator(t *testing.T) {
	var lt labelText
	lt.push("{a}")
	lt.push(" | ")
	lt.push("{b}")
	lt.push(" | ")
	lt.undo()
	assert.Equal(t, "{a} | {b}", lt.String())
}

func Test_wrap_breaksLongLabels(t *testing.T) {
	long := strings.Repeat("abc ", 30)
	wrapped := wrap(long)
	assert.Contains(t, wrapped, `\n`)
}
