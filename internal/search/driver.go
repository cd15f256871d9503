package search

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/tacossynth/tacos/internal/abword"
	"github.com/tacossynth/tacos/internal/synerr"
	"github.com/tacossynth/tacos/internal/synlog"
)

// pqItem is one queue entry. seq breaks cost ties in insertion order so
// expansion order is a total order for any heuristic.
type pqItem struct {
	node *Node
	cost int64
	seq  uint64
}

type nodeHeap []pqItem

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	if h[i].cost != h[j].cost {
		return h[i].cost < h[j].cost
	}
	return h[i].seq < h[j].seq
}
func (h nodeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x interface{}) { *h = append(*h, x.(pqItem)) }
func (h *nodeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// workQueue is the driver's min-heap frontier, guarded by one mutex. pop
// blocks until an item arrives or the queue is closed; together with the
// label-propagation locks these are the only suspension points.
type workQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  nodeHeap
	closed bool
	seq    uint64
}

func newWorkQueue() *workQueue {
	q := &workQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *workQueue) push(n *Node, cost int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.seq++
	heap.Push(&q.items, pqItem{node: n, cost: cost, seq: q.seq})
	q.cond.Signal()
}

func (q *workQueue) pop() (*Node, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	it := heap.Pop(&q.items).(pqItem)
	return it.node, true
}

func (q *workQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// drain empties the queue, returning whatever was never expanded.
func (q *workQueue) drain() []*Node {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Node, 0, len(q.items))
	for _, it := range q.items {
		out = append(out, it.node)
	}
	q.items = nil
	return out
}

// Driver runs the search: a worker pool pops frontier nodes off a
// heuristic-ordered queue, expands them, classifies the children, and
// back-propagates labels until the root resolves or the frontier empties.
type Driver struct {
	Generator *Generator
	Heuristic Heuristic

	// Workers is the pool size; values below 1 mean single-threaded.
	Workers int

	// Log receives expansion/propagation diagnostics; nil discards.
	Log *synlog.Logger

	// Observer, if set, is called once at the start of Run with the live
	// Result, before any expansion happens, so external adapters (the
	// control server) can report progress while the search runs.
	Observer func(*Result)
}

// Result is the outcome of a run: the (possibly partial) DAG and its root.
type Result struct {
	Context  *SearchContext
	Root     *Node
	RunID    uuid.UUID
	Expanded int64

	// Cancelled reports the run was stopped before the frontier emptied
	// and before the root resolved.
	Cancelled bool
}

// Run searches until the root is labeled TOP or BOTTOM, the frontier
// empties, or ctx is cancelled. Cancellation lets in-flight expansions
// finish, marks the unexpanded frontier CANCELED, and returns the partial
// DAG alongside a Cancelled error. An unresolved root on a completed
// search means no finite winning strategy was found; callers treat it as
// BOTTOM.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	log := d.Log
	if log == nil {
		log = synlog.Discard()
	}
	gen := d.Generator
	runID := uuid.New()

	sc := NewSearchContext()
	root, _ := sc.Intern([]abword.Word{gen.InitialWord()})
	root.setState(classify(gen, root))

	res := &Result{Context: sc, Root: root, RunID: runID}
	if d.Observer != nil {
		d.Observer(res)
	}

	if root.State() != StateUnknown {
		root.setLabel(leafLabel(gen, root))
		log.Info().
			Str("run", runID.String()).
			Str("label", root.Label().String()).
			Log("root is terminal, nothing to expand")
		return res, nil
	}

	workers := d.Workers
	if workers < 1 {
		workers = 1
	}
	log.Info().
		Str("run", runID.String()).
		Int("workers", workers).
		Log("search started")

	q := newWorkQueue()
	var pending atomic.Int64
	var expanded atomic.Int64
	var errMu sync.Mutex
	var firstErr error

	fail := func(err error) {
		errMu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		errMu.Unlock()
		q.close()
	}

	pending.Add(1)
	q.push(root, d.Heuristic.ComputeCost(root))

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			q.close()
		case <-stop:
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				n, ok := q.pop()
				if !ok {
					return
				}
				if n.Label() == LabelUnlabeled && !n.IsExpanded() {
					if err := d.expand(sc, n, q, &pending); err != nil {
						fail(err)
						pending.Add(-1)
						return
					}
					expanded.Add(1)
					log.Debug().
						Str("run", runID.String()).
						Int("node", int(n.ID())).
						Str("state", n.State().String()).
						Log("expanded node")
				}
				if sc.Root().Label() != LabelUnlabeled {
					q.close()
				}
				if pending.Add(-1) == 0 {
					q.close()
				}
			}
		}()
	}
	wg.Wait()
	close(stop)

	res.Expanded = expanded.Load()

	if firstErr != nil {
		return res, firstErr
	}

	if ctx.Err() != nil && root.Label() == LabelUnlabeled {
		for _, n := range q.drain() {
			n.setLabel(LabelCanceled)
		}
		for _, n := range sc.Nodes() {
			if !n.IsExpanded() && n.State() == StateUnknown {
				n.setLabel(LabelCanceled)
			}
		}
		res.Cancelled = true
		log.Warning().
			Str("run", runID.String()).
			Int("nodes", sc.Len()).
			Log("search cancelled")
		return res, synerr.Wrap(ctx.Err(), synerr.Cancelled, "search cancelled before the root resolved")
	}

	log.Info().
		Str("run", runID.String()).
		Int("nodes", sc.Len()).
		Int64("expanded", res.Expanded).
		Str("label", root.Label().String()).
		Log("search finished")
	return res, nil
}

// expand generates n's successors, links and classifies the children,
// enqueues the unresolved ones, and back-propagates labels.
func (d *Driver) expand(sc *SearchContext, n *Node, q *workQueue, pending *atomic.Int64) error {
	gen := d.Generator

	merged := map[Action]map[string]abword.Word{}
	var order []Action
	for _, w := range n.Words() {
		succs, err := gen.Successors(w)
		if err != nil {
			return err
		}
		for _, s := range succs {
			if merged[s.Action] == nil {
				merged[s.Action] = map[string]abword.Word{}
				order = append(order, s.Action)
			}
			for _, sw := range s.Words {
				merged[s.Action][sw.Key()] = sw
			}
		}
	}

	n.markExpanded()

	if len(order) == 0 {
		n.setState(StateDead)
		sc.propagate(gen, n)
		return nil
	}

	var resolved, queued []*Node
	for _, a := range order {
		words := make([]abword.Word, 0, len(merged[a]))
		for _, w := range merged[a] {
			words = append(words, w)
		}
		child, created := sc.Intern(words)
		sc.Link(n, a, child)
		if !created {
			continue
		}
		child.setState(classify(gen, child))
		if child.State() != StateUnknown {
			resolved = append(resolved, child)
		} else {
			queued = append(queued, child)
		}
	}

	// New children are propagated and queued only after every edge out of
	// n is linked, so this expansion never labels n from a partial edge set.
	for _, child := range resolved {
		sc.propagate(gen, child)
	}
	for _, child := range queued {
		pending.Add(1)
		q.push(child, d.Heuristic.ComputeCost(child))
	}

	sc.propagate(gen, n)
	return nil
}
