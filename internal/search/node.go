package search

import (
	"sort"
	"strings"
	"sync"

	"github.com/tacossynth/tacos/internal/abword"
)

// NodeID is a node's position in the SearchContext arena. Parent/child
// links are IDs rather than pointers, which sidesteps ownership cycles in
// the DAG and keeps immutable fields readable without locks.
type NodeID uint64

// NodeState is the local terminal classification of a node. It advances
// monotonically UNKNOWN -> {GOOD, BAD, DEAD}.
type NodeState int

const (
	StateUnknown NodeState = iota
	StateGood
	StateBad
	StateDead
)

func (s NodeState) String() string {
	switch s {
	case StateGood:
		return "GOOD"
	case StateBad:
		return "BAD"
	case StateDead:
		return "DEAD"
	default:
		return "UNKNOWN"
	}
}

// NodeLabel is the game label back-propagated through the DAG. It is
// terminal once set.
type NodeLabel int

const (
	LabelUnlabeled NodeLabel = iota
	LabelTop
	LabelBottom
	LabelCanceled
)

func (l NodeLabel) String() string {
	switch l {
	case LabelTop:
		return "TOP"
	case LabelBottom:
		return "BOTTOM"
	case LabelCanceled:
		return "CANCELED"
	default:
		return "UNLABELED"
	}
}

// Node is one vertex of the search DAG. Its word set is immutable after
// construction; everything else is guarded by mu.
type Node struct {
	mu sync.Mutex

	id    NodeID
	words []abword.Word // sorted by canonical key; immutable
	key   string        // identity of the word set

	state    NodeState
	label    NodeLabel
	expanded bool

	parents  map[NodeID]bool
	incoming map[Action]bool
	children []NodeID            // distinct, in first-link order
	byAction map[Action][]NodeID // distinct per action, in link order
}

// ID returns the node's arena index.
func (n *Node) ID() NodeID { return n.id }

// Words returns the node's word set, sorted by canonical key. The caller
// must not mutate the result.
func (n *Node) Words() []abword.Word { return n.words }

// Key is the identity of the node's word set, used for deduplication.
func (n *Node) Key() string { return n.key }

// State returns the node's current terminal classification.
func (n *Node) State() NodeState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Label returns the node's current game label.
func (n *Node) Label() NodeLabel {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.label
}

// IsExpanded reports whether the node's successors have been generated.
func (n *Node) IsExpanded() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.expanded
}

// Parents returns the node's parent IDs in ascending order.
func (n *Node) Parents() []NodeID {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]NodeID, 0, len(n.parents))
	for id := range n.parents {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Children returns the node's distinct child IDs in first-link order.
func (n *Node) Children() []NodeID {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]NodeID(nil), n.children...)
}

// Actions returns the node's outgoing actions in (increment, symbol) order.
func (n *Node) Actions() []Action {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Action, 0, len(n.byAction))
	for a := range n.byAction {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].less(out[j]) })
	return out
}

// ChildrenFor returns the IDs of the children reached under action a.
func (n *Node) ChildrenFor(a Action) []NodeID {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]NodeID(nil), n.byAction[a]...)
}

// IncomingActions returns the actions under which this node is reached
// from its parents, in (increment, symbol) order.
func (n *Node) IncomingActions() []Action {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Action, 0, len(n.incoming))
	for a := range n.incoming {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].less(out[j]) })
	return out
}

// setState advances the node's state; UNKNOWN is the only state that may
// change.
func (n *Node) setState(s NodeState) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state == StateUnknown {
		n.state = s
	}
}

// setLabel sets the node's label if it does not already have a terminal
// one, reporting whether it changed.
func (n *Node) setLabel(l NodeLabel) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.label != LabelUnlabeled {
		return false
	}
	n.label = l
	return true
}

func (n *Node) markExpanded() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.expanded = true
}

// wordSetKey builds the identity of a word set: the sorted canonical keys
// of its members.
func wordSetKey(words []abword.Word) string {
	keys := make([]string, len(words))
	for i, w := range words {
		keys[i] = w.Key()
	}
	sort.Strings(keys)
	return strings.Join(keys, "||")
}

// SearchContext is the arena and deduplicating index of search nodes;
// every operation takes it explicitly, there is no process-wide state.
// Its mutex guards the index and all structural links; per-node
// state/label are guarded by each node's own mutex.
type SearchContext struct {
	mu    sync.RWMutex
	index map[string]*Node
	nodes []*Node
	root  *Node
}

// NewSearchContext returns an empty context.
func NewSearchContext() *SearchContext {
	return &SearchContext{index: map[string]*Node{}}
}

// Intern returns the node for the given word set, creating it if this is
// the first time the word set is seen. The second result reports whether
// the node was created by this call.
func (c *SearchContext) Intern(words []abword.Word) (*Node, bool) {
	sorted := append([]abword.Word(nil), words...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key() < sorted[j].Key() })
	key := wordSetKey(sorted)

	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.index[key]; ok {
		return n, false
	}
	n := &Node{
		id:       NodeID(len(c.nodes)),
		words:    sorted,
		key:      key,
		parents:  map[NodeID]bool{},
		incoming: map[Action]bool{},
		byAction: map[Action][]NodeID{},
	}
	c.index[key] = n
	c.nodes = append(c.nodes, n)
	if c.root == nil {
		c.root = n
	}
	return n, true
}

// Node returns the node with the given ID, or nil if out of range.
func (c *SearchContext) Node(id NodeID) *Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if int(id) >= len(c.nodes) {
		return nil
	}
	return c.nodes[id]
}

// Root returns the first node ever interned.
func (c *SearchContext) Root() *Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.root
}

// Len returns the number of nodes in the arena.
func (c *SearchContext) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.nodes)
}

// Nodes returns every node in arena (ID) order.
func (c *SearchContext) Nodes() []*Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Node(nil), c.nodes...)
}

// Link records the edge parent -(action)-> child in both directions. It is
// idempotent per (parent, action, child). The context mutex serializes
// linking; each node's own mutex is taken briefly so readers holding only
// a node mutex see consistent link state.
func (c *SearchContext) Link(parent *Node, action Action, child *Node) {
	c.mu.Lock()
	defer c.mu.Unlock()

	parent.mu.Lock()
	already := false
	for _, id := range parent.byAction[action] {
		if id == child.id {
			already = true
			break
		}
	}
	if !already {
		parent.byAction[action] = append(parent.byAction[action], child.id)
	}
	seen := false
	for _, id := range parent.children {
		if id == child.id {
			seen = true
			break
		}
	}
	if !seen {
		parent.children = append(parent.children, child.id)
	}
	parent.mu.Unlock()

	if child != parent {
		child.mu.Lock()
		defer child.mu.Unlock()
	} else {
		parent.mu.Lock()
		defer parent.mu.Unlock()
	}
	child.parents[parent.id] = true
	child.incoming[action] = true
}
