// Package weakref implements the weak-reference chain and the deferred
// finalizer queue layered on the collector. A weak reference is
// a heap.Cell of Kind WeakRef carrying the 4-slot
// {key, value, finalizer, next} payload; this package walks and
// mutates that chain, and runs finalizers outside of GC.
package weakref

import "birch_go/pkg/heap"

// Chain is the global weak-ref list. Its head is itself a GC root
// once non-empty.
type Chain struct {
	head *heap.Cell
}

// NewChain creates an empty weak-ref chain.
func NewChain() *Chain { return &Chain{} }

// Register links ref onto the front of the chain.
func (c *Chain) Register(ref *heap.Cell) {
	ref.WRNext = c.head
	c.head = ref
}

// Head returns the chain's head cell (nil if empty).
func (c *Chain) Head() *heap.Cell { return c.head }

// Each walks the chain front to back (insertion order: newest first).
func (c *Chain) Each(fn func(*heap.Cell)) {
	for r := c.head; r != nil; r = r.WRNext {
		fn(r)
	}
}

// MarkReady flags any ref whose key is unmarked (or nil) as ready to
// finalize.
func (c *Chain) MarkReady(isMarked func(*heap.Cell) bool) {
	c.Each(func(r *heap.Cell) {
		if r.WRKey == nil || heap.IsNil(r.WRKey) || !isMarked(r.WRKey) {
			r.Gp |= heap.GPWeakReady
		}
	})
}

// ReviveLoop runs to a fixed point: for every ref whose key is marked
// but whose value or finalizer isn't, forward them and loop again,
// since forwarding can itself mark new keys reachable through other
// refs' values.
func (c *Chain) ReviveLoop(isMarked func(*heap.Cell) bool, forward func(*heap.Cell)) {
	for {
		changed := false
		c.Each(func(r *heap.Cell) {
			if r.WRKey == nil || heap.IsNil(r.WRKey) || !isMarked(r.WRKey) {
				return // key not reached (so far); nothing to revive
			}
			r.Gp &^= heap.GPWeakReady // key reached through another ref's value
			if !heap.IsNil(r.WRValue) && !isMarked(r.WRValue) {
				forward(r.WRValue)
				changed = true
			}
			if !heap.IsNil(r.WRFinalizer) && !isMarked(r.WRFinalizer) {
				forward(r.WRFinalizer)
				changed = true
			}
		})
		if !changed {
			return
		}
	}
}

// ForwardAll unconditionally forwards every weak-ref cell itself, since
// once registered it is a root — its own structure (and the chain
// linkage through it) must survive a collection regardless of whether
// its key is still reachable. It deliberately does NOT forward the
// key/value/finalizer slots: doing so would keep the key alive through
// the very reference that is supposed to be weak. Those slots are
// handled by MarkReady/ReviveLoop instead.
func (c *Chain) ForwardAll(forward func(*heap.Cell)) {
	c.Each(forward)
}

// Unlink removes ref from the chain. Callers must unlink before running
// a ref's finalizer so each finalizer runs at most once.
func (c *Chain) Unlink(ref *heap.Cell) {
	if c.head == ref {
		c.head = ref.WRNext
		ref.WRNext = nil
		return
	}
	for r := c.head; r != nil; r = r.WRNext {
		if r.WRNext == ref {
			r.WRNext = ref.WRNext
			ref.WRNext = nil
			return
		}
	}
}

// ReadyRefs returns every ref currently flagged ready-to-finalize, in
// chain order (newest first).
func (c *Chain) ReadyRefs() []*heap.Cell {
	var out []*heap.Cell
	c.Each(func(r *heap.Cell) {
		if r.Gp&heap.GPWeakReady != 0 {
			out = append(out, r)
		}
	})
	return out
}

// FinalizerFn is a finalizer callback bound to a weak ref's value.
type FinalizerFn func(value *heap.Cell)

type pendingFinalizer struct {
	value  *heap.Cell
	fn     FinalizerFn
	onExit bool
}

// Queue is the deferred finalizer queue: finalizers never run inline
// during GC, only when the host later calls RunPending/RunExit.
type Queue struct {
	pending []pendingFinalizer
	running bool // reentrancy guard: a finalizer that triggers another
	// GC must not re-enter RunPending.
}

// NewQueue creates an empty finalizer queue.
func NewQueue() *Queue { return &Queue{} }

// Enqueue schedules fn to run for value once RunPending/RunExit is
// called.
func (q *Queue) Enqueue(value *heap.Cell, fn FinalizerFn, onExit bool) {
	q.pending = append(q.pending, pendingFinalizer{value: value, fn: fn, onExit: onExit})
}

// Pending reports how many finalizers are queued but not yet run.
func (q *Queue) Pending() int { return len(q.pending) }

// OnPanic is invoked (if non-nil) with the value and the recovered
// panic whenever an individual finalizer fails, so one bad finalizer
// does not prevent the rest from running.
type OnPanic func(value *heap.Cell, recovered interface{})

// RunPending runs every currently-queued finalizer, each under its own
// recover, in a fresh top-level context — a failing finalizer does not
// abort the others. Finalizers queued by a finalizer that runs during
// this call are left for the next call, so a single RunPending never
// grows into an unbounded recursive batch.
func (q *Queue) RunPending(onPanic OnPanic) {
	if q.running {
		return
	}
	q.running = true
	defer func() { q.running = false }()

	batch := q.pending
	q.pending = nil
	for _, pf := range batch {
		runOne(pf, onPanic)
	}
}

// RunExit runs every finalizer currently queued, exit-time or not, used
// at process shutdown. It is RunPending under another name: it does not
// walk any weak-ref chain, so only finalizers already queued run.
func (q *Queue) RunExit(onPanic OnPanic) {
	q.RunPending(onPanic)
}

func runOne(pf pendingFinalizer, onPanic OnPanic) {
	defer func() {
		if r := recover(); r != nil && onPanic != nil {
			onPanic(pf.value, r)
		}
	}()
	pf.fn(pf.value)
}
