package gc

import (
	"birch_go/pkg/heap"
)

// selectLevel picks how many old generations this cycle collects, via
// a per-generation countdown: generation 0 is implicitly collected
// every cycle (it lives on New); counter[g] is decremented each cycle
// that reaches generation g, and hitting zero both refills it from
// levelFreq[g] and bumps the level to g+1 (saturating at the top
// generation), cascading into the next counter.
func (h *Heap) selectLevel() int {
	level := 0
	for g := 0; g < heap.NumOldGenerations; g++ {
		h.levelCounter[g]--
		if h.levelCounter[g] > 0 {
			break
		}
		h.levelCounter[g] = h.levelFreq[g]
		level = g + 1
	}
	if level > heap.NumOldGenerations-1 {
		level = heap.NumOldGenerations - 1
	}
	return level
}

// GCLite collects generation 0 only, without touching the level-
// selection counters, for a host that wants cheap incremental
// collection between top-level evaluations without advancing the
// old-generation countdown a full gc() call would.
func (h *Heap) GCLite() {
	h.Collect(0)
}

// maybeCollectBeforeAlloc is the allocation hot-path hook: it forces a
// torture collection when due, then collects (escalating one level at a
// time) until the budget has enough headroom for the requested units,
// growing nSize/vSize if collection alone isn't enough, and finally
// reporting OutOfMemory/HeapExhausted if even that fails. Called only
// from within an already-acquired allocation entry point, so it drives
// collectLocked directly rather than the token-acquiring Collect.
func (h *Heap) maybeCollectBeforeAlloc(units int) error {
	if h.torture.due() {
		h.collectLocked(heap.NumOldGenerations - 1)
	}

	if !h.needsRoom(units) {
		return nil
	}

	level := h.selectLevel()
	h.collectLocked(level)

	for h.freeFrac() < MinFreeFrac && level < heap.NumOldGenerations-1 {
		level++
		h.collectLocked(level)
	}

	if !h.needsRoom(units) {
		return nil
	}

	// Collection alone didn't free enough room: run pending finalizers
	// (a finalizer can itself drop the last reference to more garbage)
	// and try once more at full depth before giving up.
	h.Finalizers.RunPending(nil)
	h.collectLocked(heap.NumOldGenerations - 1)
	if !h.needsRoom(units) {
		return nil
	}

	if h.nodeCount >= h.budget.MaxNodes && h.vectorUnitsInUse >= h.budget.MaxVectorBytes/8 {
		return HeapExhausted{}
	}
	return OutOfMemory{Requested: units}
}

// needsRoom reports whether the next allocation of the given size would
// push either budget past its current adaptive threshold.
func (h *Heap) needsRoom(units int) bool {
	return h.nodeCount+1 > h.nSize || h.vectorUnitsInUse+units > h.vSize
}

// Collect runs one full generational collection cycle, collecting
// generations 0..level inclusive. It is the public entry point (the
// `gc()` builtin calls it directly); the allocation hot path instead
// calls collectLocked, since by the time it decides to collect it
// already holds the heap's token.
func (h *Heap) Collect(level int) {
	h.acquire()
	defer h.release()
	h.collectLocked(level)
}

// collectLocked is Collect's body, run with the heap's token already
// held by the caller.
func (h *Heap) collectLocked(level int) {
	if h.inGC {
		panic("gc: collection invoked re-entrantly")
	}
	h.inGC = true
	defer func() { h.inGC = false }()

	var queue []*heap.Cell
	mark := func(c *heap.Cell) {
		if c == nil || heap.IsNil(c) || c.Mark {
			return
		}
		c.Mark = true
		queue = append(queue, c)
	}
	drainQueue := func() {
		for len(queue) > 0 {
			n := len(queue) - 1
			c := queue[n]
			queue = queue[:n]
			markChildren(c, mark)
		}
	}

	// Step 1: drain OldToNew for every collected generation. These
	// cells are already known live (they're still on Old); their
	// bookkeeping duty for this cycle is done once drained, so they go
	// back onto the plain Old list.
	for _, class := range gcClasses {
		for g := 0; g <= level; g++ {
			for _, c := range h.oldToNew[class][g].Drain() {
				c.List = heap.ListOld
				h.oldList[class][g].PushFront(c)
				mark(c)
			}
		}
	}

	// Step 2: expose every collected generation's Old cells to this
	// cycle by moving them to New, unmarked, with their generation
	// speculatively bumped; survivors are promoted back to Old (at
	// their bumped generation) during sweep, non-survivors are freed
	// from New exactly like a true young cell would be.
	for _, class := range gcClasses {
		for g := 0; g <= level; g++ {
			next := g + 1
			if next > heap.NumOldGenerations-1 {
				next = heap.NumOldGenerations - 1
			}
			for _, c := range h.oldList[class][g].Drain() {
				c.Mark = false
				c.Gen = uint8(next)
				c.List = heap.ListNew
				h.newList[class].PushFront(c)
			}
		}
	}

	// Step 3: uncollected generations' OldToNew entries are additional
	// roots — an uncollected old cell may point at a young survivor.
	for _, class := range gcClasses {
		for g := level + 1; g < heap.NumOldGenerations; g++ {
			h.oldToNew[class][g].Each(mark)
		}
	}

	// Step 4: forward every external root.
	h.Protect.Roots(mark)
	h.Preserve.Roots(mark)
	for _, ms := range h.named {
		ms.Roots(mark)
	}
	for _, s := range h.symbols {
		mark(s)
	}
	h.Weak.ForwardAll(mark)

	// Step 5: process the forward queue.
	drainQueue()

	// Step 6: weak-reference pass.
	isMarked := func(c *heap.Cell) bool { return c.Mark }
	h.Weak.MarkReady(isMarked)
	h.Weak.ReviveLoop(isMarked, func(c *heap.Cell) {
		mark(c)
		drainQueue()
	})
	for _, ready := range h.Weak.ReadyRefs() {
		h.scheduleFinalizer(ready)
	}

	// Step 8: sweep. Large cells that are unmarked are simply dropped
	// from our own bookkeeping (Go's allocator reclaims the backing
	// memory once nothing references them); small cells return to
	// their pool's free list. Every survivor is promoted: its
	// generation is at least level+1 whether or not step 2 already
	// bumped it (a true first-time survivor starts at Gen 0).
	for _, class := range gcClasses {
		for _, c := range h.newList[class].Drain() {
			if !c.Mark {
				h.nodeCount--
				if c.Class != heap.ClassLarge {
					h.pools[c.Class].Free(c)
				}
				if c.Kind.IsVector() {
					h.vectorUnitsInUse -= vectorUnits(c.Kind, c.TrueLength)
				}
				continue
			}
			c.Mark = false
			if int(c.Gen) <= level {
				c.Gen = uint8(level + 1)
			}
			if int(c.Gen) > heap.NumOldGenerations-1 {
				c.Gen = heap.NumOldGenerations - 1
			}
			c.List = heap.ListOld
			h.oldList[class][c.Gen].PushFront(c)
		}
	}

	// Step 9: heap-size adjustment and (optional) page release.
	if level == heap.NumOldGenerations-1 {
		h.fullGCCount++
		h.adjustSizes()
		if !h.torture.inhibitRelease {
			h.releaseIdlePages()
		}
	}
}

// markChildren enqueues every unmarked child of c, dispatching on Kind
// the way the forward queue's processing step does: attribute pairlist
// first (shared by every Kind), then the Kind-specific slots.
func markChildren(c *heap.Cell, mark func(*heap.Cell)) {
	mark(c.Attrib)
	switch c.Kind {
	case heap.KindCons, heap.KindLanguage, heap.KindDots:
		mark(c.Car)
		mark(c.Cdr)
		mark(c.Tag)
	case heap.KindSymbol:
		mark(c.PrintName)
		mark(c.GlobalValue)
		mark(c.Internal)
	case heap.KindClosure:
		mark(c.Formals)
		mark(c.Body)
		mark(c.Env)
	case heap.KindPromise:
		mark(c.PCode)
		mark(c.PEnv)
		mark(c.PValue)
	case heap.KindEnvironment:
		mark(c.Frame)
		mark(c.Enclosing)
		mark(c.Hashtab)
	case heap.KindExternalPointer:
		mark(c.Protected)
		mark(c.ExtTag)
	// KindWeakRef deliberately has no case here: key/value/finalizer are
	// not ordinary children. A weak ref cell is always marked live once
	// registered (see the weak-reference pass), but marking its key
	// unconditionally would defeat weakness; the weak-ref pass forwards
	// value/finalizer only once the key is independently known live.
	case heap.KindBytecode:
		mark(c.BCCode)
		mark(c.BCEnv)
	case heap.KindString, heap.KindList, heap.KindExpression:
		for _, e := range c.Strs {
			mark(e)
		}
	}
}
