package weakref

import (
	"testing"

	"birch_go/pkg/heap"
)

func marked(set map[*heap.Cell]bool) func(*heap.Cell) bool {
	return func(c *heap.Cell) bool { return set[c] }
}

func TestChainRegisterAndEach(t *testing.T) {
	c := NewChain()
	a := &heap.Cell{Kind: heap.KindWeakRef}
	b := &heap.Cell{Kind: heap.KindWeakRef}
	c.Register(a)
	c.Register(b)

	var seen []*heap.Cell
	c.Each(func(r *heap.Cell) { seen = append(seen, r) })
	if len(seen) != 2 || seen[0] != b || seen[1] != a {
		t.Errorf("Each order = %v, want [b a] (newest first)", seen)
	}
}

func TestMarkReadyFlagsDeadKey(t *testing.T) {
	c := NewChain()
	key := &heap.Cell{Kind: heap.KindSymbol}
	ref := &heap.Cell{Kind: heap.KindWeakRef, WRKey: key, WRValue: &heap.Cell{Kind: heap.KindSymbol}}
	c.Register(ref)

	c.MarkReady(marked(nil))
	if ref.Gp&heap.GPWeakReady == 0 {
		t.Error("a ref whose key is unmarked should be flagged ready")
	}
}

func TestMarkReadyLeavesLiveKeyAlone(t *testing.T) {
	c := NewChain()
	key := &heap.Cell{Kind: heap.KindSymbol}
	ref := &heap.Cell{Kind: heap.KindWeakRef, WRKey: key}
	c.Register(ref)

	c.MarkReady(marked(map[*heap.Cell]bool{key: true}))
	if ref.Gp&heap.GPWeakReady != 0 {
		t.Error("a ref whose key is still marked should not be flagged ready")
	}
}

// TestReviveLoopForwardsValueWhileKeyLives is the value-survives-with-
// key scenario: a weak ref's value is only forwarded (kept alive) while
// its key is independently reachable.
func TestReviveLoopForwardsValueWhileKeyLives(t *testing.T) {
	c := NewChain()
	key := &heap.Cell{Kind: heap.KindSymbol}
	value := &heap.Cell{Kind: heap.KindSymbol}
	ref := &heap.Cell{Kind: heap.KindWeakRef, WRKey: key, WRValue: value}
	c.Register(ref)

	live := map[*heap.Cell]bool{key: true}
	c.MarkReady(marked(live))

	var forwarded []*heap.Cell
	c.ReviveLoop(marked(live), func(v *heap.Cell) {
		live[v] = true
		forwarded = append(forwarded, v)
	})

	if len(forwarded) != 1 || forwarded[0] != value {
		t.Fatalf("ReviveLoop forwarded %v, want [value]", forwarded)
	}
	if !live[value] {
		t.Error("value should be marked live once its key survives")
	}
}

func TestReviveLoopSkipsValueWhenKeyIsDead(t *testing.T) {
	c := NewChain()
	key := &heap.Cell{Kind: heap.KindSymbol}
	value := &heap.Cell{Kind: heap.KindSymbol}
	ref := &heap.Cell{Kind: heap.KindWeakRef, WRKey: key, WRValue: value}
	c.Register(ref)

	live := map[*heap.Cell]bool{} // key is not in the live set
	c.MarkReady(marked(live))

	var forwarded []*heap.Cell
	c.ReviveLoop(marked(live), func(v *heap.Cell) { forwarded = append(forwarded, v) })

	if len(forwarded) != 0 {
		t.Errorf("ReviveLoop forwarded %v, want none once the ref is flagged ready (key is dead)", forwarded)
	}
}

func TestForwardAllForwardsEveryRefRegardlessOfKey(t *testing.T) {
	c := NewChain()
	a := &heap.Cell{Kind: heap.KindWeakRef}
	b := &heap.Cell{Kind: heap.KindWeakRef}
	c.Register(a)
	c.Register(b)

	var forwarded []*heap.Cell
	c.ForwardAll(func(r *heap.Cell) { forwarded = append(forwarded, r) })
	if len(forwarded) != 2 {
		t.Errorf("ForwardAll forwarded %d refs, want 2", len(forwarded))
	}
}

func TestChainUnlink(t *testing.T) {
	c := NewChain()
	a := &heap.Cell{Kind: heap.KindWeakRef}
	b := &heap.Cell{Kind: heap.KindWeakRef}
	d := &heap.Cell{Kind: heap.KindWeakRef}
	c.Register(a)
	c.Register(b)
	c.Register(d)

	c.Unlink(b)
	var seen []*heap.Cell
	c.Each(func(r *heap.Cell) { seen = append(seen, r) })
	if len(seen) != 2 || seen[0] != d || seen[1] != a {
		t.Errorf("chain after Unlink(b) = %v, want [d a]", seen)
	}

	c.Unlink(d) // unlink the head
	seen = nil
	c.Each(func(r *heap.Cell) { seen = append(seen, r) })
	if len(seen) != 1 || seen[0] != a {
		t.Errorf("chain after unlinking the head = %v, want [a]", seen)
	}
}

func TestReadyRefs(t *testing.T) {
	c := NewChain()
	ready := &heap.Cell{Kind: heap.KindWeakRef, Gp: heap.GPWeakReady}
	notReady := &heap.Cell{Kind: heap.KindWeakRef}
	c.Register(notReady)
	c.Register(ready)

	got := c.ReadyRefs()
	if len(got) != 1 || got[0] != ready {
		t.Errorf("ReadyRefs() = %v, want [ready]", got)
	}
}

// TestFinalizerRunsAtMostOnce covers the at-most-once requirement: once
// a ref is unlinked and its finalizer enqueued, running the queue twice
// must not invoke the callback a second time.
func TestFinalizerRunsAtMostOnce(t *testing.T) {
	c := NewChain()
	q := NewQueue()
	key := &heap.Cell{Kind: heap.KindSymbol}
	value := &heap.Cell{Kind: heap.KindSymbol}
	ref := &heap.Cell{Kind: heap.KindWeakRef, WRKey: key, WRValue: value, Gp: heap.GPWeakReady}
	c.Register(ref)

	runs := 0
	c.Unlink(ref)
	q.Enqueue(value, func(*heap.Cell) { runs++ }, false)

	q.RunPending(nil)
	q.RunPending(nil)
	q.RunPending(nil)

	if runs != 1 {
		t.Errorf("finalizer ran %d times, want exactly 1", runs)
	}
	if q.Pending() != 0 {
		t.Errorf("Pending() after RunPending = %d, want 0", q.Pending())
	}
}

func TestFinalizerPanicDoesNotBlockOthers(t *testing.T) {
	q := NewQueue()
	ranSecond := false
	q.Enqueue(&heap.Cell{}, func(*heap.Cell) { panic("boom") }, false)
	q.Enqueue(&heap.Cell{}, func(*heap.Cell) { ranSecond = true }, false)

	var paniced *heap.Cell
	q.RunPending(func(value *heap.Cell, recovered interface{}) { paniced = value })

	if !ranSecond {
		t.Error("a panicking finalizer should not prevent the next one from running")
	}
	if paniced == nil {
		t.Error("OnPanic should have been invoked for the panicking finalizer")
	}
}

func TestQueuedDuringRunIsDeferredToNextCall(t *testing.T) {
	q := NewQueue()
	inner := 0
	q.Enqueue(&heap.Cell{}, func(*heap.Cell) {
		q.Enqueue(&heap.Cell{}, func(*heap.Cell) { inner++ }, false)
	}, false)

	q.RunPending(nil)
	if inner != 0 {
		t.Fatal("a finalizer queued by a running finalizer must not run in the same RunPending batch")
	}
	if q.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1 (the re-entrant finalizer stays queued)", q.Pending())
	}
	q.RunPending(nil)
	if inner != 1 {
		t.Errorf("inner = %d, want 1 after the next RunPending call", inner)
	}
}
