package search

import (
	"github.com/tacossynth/tacos/internal/synerr"
)

// classify computes the local terminal classification of a node's word
// set: BAD if some word carries the violated sentinel, GOOD if
// some word sits in an accepting plant configuration with every ATA
// obligation final. Violation wins over acceptance because the word set
// collects nondeterministic outcomes the controller does not get to pick
// between.
func classify(g *Generator, n *Node) NodeState {
	for _, w := range n.Words() {
		if g.violated(w) {
			return StateBad
		}
	}
	for _, w := range n.Words() {
		if g.plantAccepting(w) && g.accepting(w) {
			return StateGood
		}
	}
	return StateUnknown
}

// leafLabel maps a terminal state to its game label. GOOD wins, BAD loses.
// A DEAD node is where play necessarily stops: the controller wins iff the
// word as played satisfies the specification, i.e. every outcome's ATA
// side is accepting.
func leafLabel(g *Generator, n *Node) NodeLabel {
	switch n.State() {
	case StateGood:
		return LabelTop
	case StateBad:
		return LabelBottom
	case StateDead:
		for _, w := range n.Words() {
			if !g.accepting(w) {
				return LabelBottom
			}
		}
		return LabelTop
	default:
		return LabelUnlabeled
	}
}

// combinedLabel is the label of one (Δ, σ) edge group: TOP only if every
// child reached under the action is TOP (all nondeterministic outcomes
// still win), BOTTOM as soon as any child is BOTTOM.
func (c *SearchContext) combinedLabel(n *Node, a Action) NodeLabel {
	ids := n.ChildrenFor(a)
	if len(ids) == 0 {
		return LabelUnlabeled
	}
	allTop := true
	for _, id := range ids {
		switch c.Node(id).Label() {
		case LabelBottom:
			return LabelBottom
		case LabelTop:
			// keeps allTop
		default:
			allTop = false
		}
	}
	if allTop {
		return LabelTop
	}
	return LabelUnlabeled
}

// CombinedLabel is the exported form of combinedLabel, used by the
// controller extractor to pick winning edges.
func (c *SearchContext) CombinedLabel(n *Node, a Action) NodeLabel {
	return c.combinedLabel(n, a)
}

// computeLabel derives a node's label from its outgoing edges' combined
// labels, as a monotone function of child knowledge:
//
//   - TOP if the controller has a winning action no strictly earlier
//     environment action can spoil, or if every environment action wins
//     regardless (the controller simply refrains).
//   - BOTTOM if the environment has a losing action the controller cannot
//     preempt with an earlier-or-simultaneous winning action of its own,
//     or if the node's actions are all the controller's and all lose.
//
// Ties in the increment go to the controller. Cycles whose combined
// labels never resolve leave the node UNLABELED; the driver interprets an
// unresolved root as BOTTOM.
func (c *SearchContext) computeLabel(g *Generator, n *Node) NodeLabel {
	actions := n.Actions()
	if len(actions) == 0 {
		return leafLabel(g, n)
	}

	type edge struct {
		action Action
		owner  Owner
		label  NodeLabel
	}
	edges := make([]edge, len(actions))
	hasEnv, hasCtl := false, false
	allEnvTop, allCtlBottom := true, true
	for i, a := range actions {
		e := edge{action: a, owner: g.OwnerOf(a.Symbol), label: c.combinedLabel(n, a)}
		edges[i] = e
		if e.owner == OwnerEnvironment {
			hasEnv = true
			if e.label != LabelTop {
				allEnvTop = false
			}
		} else {
			hasCtl = true
			if e.label != LabelBottom {
				allCtlBottom = false
			}
		}
	}

	ctlWin := false
	for _, e := range edges {
		if e.owner != OwnerController || e.label != LabelTop {
			continue
		}
		spoiled := false
		for _, o := range edges {
			if o.owner == OwnerEnvironment && o.action.Increment < e.action.Increment && o.label != LabelTop {
				spoiled = true
				break
			}
		}
		if !spoiled {
			ctlWin = true
			break
		}
	}
	if ctlWin || (hasEnv && allEnvTop) {
		return LabelTop
	}

	for _, e := range edges {
		if e.owner != OwnerEnvironment || e.label != LabelBottom {
			continue
		}
		preemptable := false
		for _, o := range edges {
			if o.owner == OwnerController && o.action.Increment <= e.action.Increment && o.label != LabelBottom {
				preemptable = true
				break
			}
		}
		if !preemptable {
			return LabelBottom
		}
	}
	if !hasEnv && hasCtl && allCtlBottom {
		return LabelBottom
	}

	return LabelUnlabeled
}

// propagate re-derives labels starting at n and walking up through
// parents for as long as labels keep resolving. It is a monotone
// fixed-point step: labels only ever move UNLABELED -> {TOP, BOTTOM}, so
// the final labeling is independent of worker interleaving.
func (c *SearchContext) propagate(g *Generator, n *Node) {
	queue := []*Node{n}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.Label() == LabelUnlabeled {
			if l := c.computeLabel(g, cur); l != LabelUnlabeled {
				if !cur.setLabel(l) {
					continue
				}
			} else {
				continue
			}
		}
		for _, pid := range cur.Parents() {
			queue = append(queue, c.Node(pid))
		}
	}
}

// Validate checks the structural invariants of the DAG: every child link
// has a matching parent link and vice versa, and every recorded action
// leads to recorded children. A violation is an InconsistentTree error.
func (c *SearchContext) Validate() error {
	for _, n := range c.Nodes() {
		for _, a := range n.Actions() {
			for _, id := range n.ChildrenFor(a) {
				child := c.Node(id)
				if child == nil {
					return synerr.Newf(synerr.InconsistentTree, "node %d: action %v leads to unknown node %d", n.ID(), a, id)
				}
				found := false
				for _, pid := range child.Parents() {
					if pid == n.ID() {
						found = true
						break
					}
				}
				if !found {
					return synerr.Newf(synerr.InconsistentTree, "node %d is not recorded as a parent of its child %d", n.ID(), child.ID())
				}
			}
		}
		for _, pid := range n.Parents() {
			parent := c.Node(pid)
			if parent == nil {
				return synerr.Newf(synerr.InconsistentTree, "node %d has unknown parent %d", n.ID(), pid)
			}
			found := false
			for _, cid := range parent.Children() {
				if cid == n.ID() {
					found = true
					break
				}
			}
			if !found {
				return synerr.Newf(synerr.InconsistentTree, "node %d is not recorded as a child of its parent %d", n.ID(), pid)
			}
		}
	}
	return nil
}
