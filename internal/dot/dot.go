// Package dot renders the plant, the specification automaton, and the
// search DAG to Graphviz DOT, with an optional shell-out to the dot
// binary for PNG output.
package dot

import (
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/dekarrin/rosed"
	"github.com/tacossynth/tacos/internal/abword"
	"github.com/tacossynth/tacos/internal/ata"
	"github.com/tacossynth/tacos/internal/search"
	"github.com/tacossynth/tacos/internal/synerr"
	"github.com/tacossynth/tacos/internal/ta"
	"github.com/tacossynth/tacos/internal/util"
)

// labelWidth is where long node labels wrap; Graphviz renders anything
// wider illegibly.
const labelWidth = 40

func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return strings.ReplaceAll(s, "\n", `\n`)
}

// wrap breaks a long label into escaped DOT line breaks.
func wrap(s string) string {
	if len(s) <= labelWidth {
		return escape(s)
	}
	wrapped := rosed.Edit(s).Wrap(labelWidth).String()
	lines := strings.Split(strings.TrimRight(wrapped, "\n"), "\n")
	for i := range lines {
		lines[i] = escape(lines[i])
	}
	return strings.Join(lines, `\n`)
}

// TA renders a timed automaton. The initial location gets an entry arrow,
// final locations a double circle, and each transition its symbol, guard,
// and resets.
func TA(a *ta.Automaton) string {
	var sb strings.Builder
	sb.WriteString("digraph ta {\n")
	sb.WriteString("\trankdir=LR;\n")
	sb.WriteString("\tnode [shape=circle];\n")
	sb.WriteString("\t__init [shape=point];\n")

	for _, l := range a.Locations() {
		shape := ""
		if a.IsFinal(l) {
			shape = " shape=doublecircle"
		}
		fmt.Fprintf(&sb, "\t%q [label=\"%s\"%s];\n", l, wrap(string(l)), shape)
	}
	fmt.Fprintf(&sb, "\t__init -> %q;\n", a.Initial())

	for _, t := range a.Transitions() {
		fmt.Fprintf(&sb, "\t%q -> %q [label=\"%s\"];\n", t.Source, t.Target, wrap(transitionLabel(t)))
	}
	sb.WriteString("}\n")
	return sb.String()
}

func transitionLabel(t ta.Transition) string {
	parts := []string{string(t.Symbol)}
	for _, clock := range util.OrderedKeys(t.Guard) {
		for _, c := range t.Guard[clock] {
			parts = append(parts, fmt.Sprintf("%s %s", clock, c))
		}
	}
	if t.Resets.Len() > 0 {
		var resets []string
		for _, r := range util.OrderedKeys(t.Resets) {
			resets = append(resets, string(r))
		}
		parts = append(parts, "reset "+strings.Join(resets, ","))
	}
	return strings.Join(parts, " / ")
}

// ATA renders the specification automaton: one vertex per location, one
// edge per transition, labeled with the read symbol and the target
// formula.
func ATA(a *ata.Automaton) string {
	var sb strings.Builder
	sb.WriteString("digraph ata {\n")
	sb.WriteString("\trankdir=LR;\n")
	sb.WriteString("\tnode [shape=circle];\n")
	sb.WriteString("\t__init [shape=point];\n")

	for _, l := range a.Locations() {
		shape := ""
		if a.IsFinal(l) {
			shape = " shape=doublecircle"
		}
		fmt.Fprintf(&sb, "\t%q [label=\"%s\"%s];\n", l, wrap(string(l)), shape)
	}
	fmt.Fprintf(&sb, "\t__init -> %q;\n", a.Initial())

	for i, t := range a.Transitions() {
		sym := string(t.Symbol)
		if sym == "" {
			sym = "∅"
		}
		// formulas are hyperedges: render the target formula as its own
		// box so conjunctions stay readable
		box := fmt.Sprintf("__f%d", i)
		fmt.Fprintf(&sb, "\t%s [shape=box label=\"%s\"];\n", box, wrap(t.Formula.String()))
		fmt.Fprintf(&sb, "\t%q -> %s [label=\"%s\"];\n", t.Source, box, wrap(sym))
	}
	sb.WriteString("}\n")
	return sb.String()
}

// Tree renders the search DAG: nodes carry their ID, state, label, and
// word set; edges carry the (increment, symbol) action.
func Tree(sc *search.SearchContext) string {
	var sb strings.Builder
	sb.WriteString("digraph searchtree {\n")
	sb.WriteString("\tnode [shape=box];\n")

	for _, n := range sc.Nodes() {
		fmt.Fprintf(&sb, "\tn%d [label=\"%s\"%s];\n", n.ID(), wrap(nodeLabel(n)), nodeStyle(n))
		for _, a := range n.Actions() {
			ids := n.ChildrenFor(a)
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
			for _, id := range ids {
				fmt.Fprintf(&sb, "\tn%d -> n%d [label=\"(%d, %s)\"];\n", n.ID(), id, a.Increment, escape(string(a.Symbol)))
			}
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}

func nodeStyle(n *search.Node) string {
	switch n.Label() {
	case search.LabelTop:
		return " color=green"
	case search.LabelBottom:
		return " color=red"
	case search.LabelCanceled:
		return " color=gray style=dashed"
	default:
		return ""
	}
}

// labelText accumulates a node label as discrete segments, so a
// speculative write (a group separator that may turn out to trail the
// final group of a word) can be backed out before rendering.
type labelText struct {
	segments []string
}

func (l *labelText) push(s string) {
	l.segments = append(l.segments, s)
}

// undo drops the most recently pushed segment.
func (l *labelText) undo() {
	if n := len(l.segments); n > 0 {
		l.segments = l.segments[:n-1]
	}
}

func (l *labelText) String() string {
	return strings.Join(l.segments, "")
}

// nodeLabel builds a node's display text: an ID/state/label header, then
// each canonical word on its own line with its groups joined by " | ".
func nodeLabel(n *search.Node) string {
	var lt labelText
	lt.push(fmt.Sprintf("#%d %s/%s", n.ID(), n.State(), n.Label()))
	for _, w := range n.Words() {
		lt.push("\n")
		writeWord(&lt, w)
	}
	return lt.String()
}

func writeWord(lt *labelText, w abword.Word) {
	for _, g := range w {
		lt.push(g.String())
		lt.push(" | ")
	}
	if len(w) > 0 {
		lt.undo() // drop the trailing separator
	}
}

// RenderPNG runs the Graphviz dot binary over src and writes a PNG to
// path. A missing binary is a configuration problem, not a crash.
func RenderPNG(src, path string) error {
	bin, err := exec.LookPath("dot")
	if err != nil {
		return synerr.Wrap(err, synerr.Configuration, "graphviz dot binary not found on PATH")
	}
	cmd := exec.Command(bin, "-Tpng", "-o", path)
	cmd.Stdin = strings.NewReader(src)
	if out, err := cmd.CombinedOutput(); err != nil {
		return synerr.Wrapf(err, synerr.Configuration, "dot failed: %s", strings.TrimSpace(string(out)))
	}
	return nil
}
