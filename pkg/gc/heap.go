// Package gc implements the generational, non-moving, mark-sweep
// collector: per-(class,generation) cell lists, the allocation entry
// points, the collection cycle, and heap-size adjustment. It is the
// concrete type that satisfies barrier.ListMover, closing the loop
// between pkg/heap's data model, pkg/barrier's write-barrier logic,
// and the page pools and root anchors that keep cells alive.
package gc

import (
	"fmt"

	"birch_go/pkg/heap"
	"birch_go/pkg/page"
	"birch_go/pkg/protect"
	"birch_go/pkg/rtconfig"
	"birch_go/pkg/weakref"
)

// smallClasses lists every page-backed class, in allocation order.
var smallClasses = []heap.Class{
	heap.ClassNonVector, heap.ClassVec1, heap.ClassVec2,
	heap.ClassVec3, heap.ClassVec4, heap.ClassVec5,
}

// gcClasses lists every class the collector tracks generational lists
// for: the page-backed small classes plus Large. Large cells carry no
// pool (page.LargeAlloc hands out one Cell per call, reclaimed by Go's
// own allocator once unreferenced) but still need New/Old/OldToNew
// list membership so the collector can trace and promote them.
var gcClasses = append(append([]heap.Class{}, smallClasses...), heap.ClassLarge)

// Budget bounds how many nodes and vector bytes the heap may hold
// before allocation fails.
type Budget struct {
	MaxNodes        int
	MaxVectorBytes  int
	MaxVectorLength int // SizeExceedsLimit threshold for AllocVector
}

// DefaultBudget is used by cmd/birch and tests when a host doesn't
// override it.
var DefaultBudget = Budget{
	MaxNodes:        4_000_000,
	MaxVectorBytes:  256 << 20,
	MaxVectorLength: 1<<31 - 1,
}

// OutOfMemory is returned when the top collection level still cannot
// satisfy a requested allocation.
type OutOfMemory struct{ Requested int }

func (e OutOfMemory) Error() string {
	return fmt.Sprintf("out of memory: could not satisfy request for %d units after a full collection", e.Requested)
}

// HeapExhausted is returned when both the node budget and the vector
// byte budget are exceeded even after a full GC and finalizer run.
type HeapExhausted struct{}

func (e HeapExhausted) Error() string { return "heap exhausted: node and vector budgets both full" }

// SizeExceedsLimit is returned by AllocVector when length exceeds the
// configured maximum vector length.
type SizeExceedsLimit struct {
	Requested, Limit int
}

func (e SizeExceedsLimit) Error() string {
	return fmt.Sprintf("vector length %d exceeds configured limit %d", e.Requested, e.Limit)
}

// Heap owns every generational list, page pool, and GC-root anchor; it
// is the single point of mutation for the managed heap.
type Heap struct {
	cfg    rtconfig.Config
	budget Budget

	pools    map[heap.Class]*page.Pool
	newList  map[heap.Class]*cellList
	oldList  map[heap.Class]*[heap.NumOldGenerations]*cellList
	oldToNew map[heap.Class]*[heap.NumOldGenerations]*cellList

	Protect  *protect.Stack
	Preserve *protect.PreserveList
	named    map[string]*protect.Multiset

	Weak       *weakref.Chain
	Finalizers *weakref.Queue
	// finalizerFns holds the native callback for a weak-ref cell
	// registered via RegisterFinalizer, keyed by the ref cell itself;
	// refs created through AllocWeakRef with a language-level finalizer
	// value never appear here.
	finalizerFns map[*heap.Cell]weakref.FinalizerFn

	symbols map[string]*heap.Cell

	nSize        int
	nGrowFrac    float64
	nShrinkFrac  float64
	nGrowIncrMin int

	vSize       int
	vGrowFrac   float64
	vShrinkFrac float64

	levelCounter [heap.NumOldGenerations]int
	levelFreq    [heap.NumOldGenerations]int

	fullGCCount    int
	inGC           bool
	lastNodesInUse int
	nodeCount      int

	vectorUnitsInUse int

	torture tortureState

	ownerToken chan struct{}
}

// New creates an empty heap sized from budget, configured from cfg.
func New(cfg rtconfig.Config, budget Budget) *Heap {
	h := &Heap{
		cfg:    cfg,
		budget: budget,

		pools:    make(map[heap.Class]*page.Pool, len(smallClasses)),
		newList:  make(map[heap.Class]*cellList, len(gcClasses)),
		oldList:  make(map[heap.Class]*[heap.NumOldGenerations]*cellList, len(gcClasses)),
		oldToNew: make(map[heap.Class]*[heap.NumOldGenerations]*cellList, len(gcClasses)),

		Protect:  protect.NewStack(10000),
		Preserve: protect.NewPreserveList(cfg.HashPrecious),
		named:    make(map[string]*protect.Multiset),

		Weak:         weakref.NewChain(),
		Finalizers:   weakref.NewQueue(),
		finalizerFns: make(map[*heap.Cell]weakref.FinalizerFn),

		symbols: make(map[string]*heap.Cell),

		nSize:        20000,
		nGrowFrac:    0.70,
		nShrinkFrac:  0.30,
		nGrowIncrMin: 50000,

		vSize:       8_000_000,
		vGrowFrac:   0.70,
		vShrinkFrac: 0.30,

		levelFreq: [heap.NumOldGenerations]int{20, 5},

		ownerToken: make(chan struct{}, 1),
	}
	for i := range h.levelCounter {
		h.levelCounter[i] = h.levelFreq[i]
	}
	for _, c := range smallClasses {
		h.pools[c] = page.NewPool(c)
	}
	for _, c := range gcClasses {
		h.newList[c] = newCellList()
		h.oldList[c] = &[heap.NumOldGenerations]*cellList{}
		h.oldToNew[c] = &[heap.NumOldGenerations]*cellList{}
		for g := 0; g < heap.NumOldGenerations; g++ {
			h.oldList[c][g] = newCellList()
			h.oldToNew[c][g] = newCellList()
		}
	}
	if cfg.GCTorture > 0 {
		h.torture.gap = cfg.GCTorture
		h.torture.wait = cfg.GCTortureWait
		h.torture.inhibitRelease = cfg.GCTortureInhibitRelease
	}
	h.ownerToken <- struct{}{}
	return h
}

// NamedMultiset returns the precious multi-set registered under name,
// creating it on first use. The parser uses one instead of sharing the
// protect stack, per name (e.g. one per nested parse).
func (h *Heap) NamedMultiset(name string) *protect.Multiset {
	ms, ok := h.named[name]
	if !ok {
		ms = protect.NewMultiset()
		h.named[name] = ms
	}
	return ms
}

// Intern returns the unique Symbol cell for name, allocating it on
// first use the way the symbol table is expected to behave (one Symbol
// per distinct print-name, for the lifetime of the process).
func (h *Heap) Intern(name string) *heap.Cell {
	if s, ok := h.symbols[name]; ok {
		return s
	}
	s := &heap.Cell{
		Kind:        heap.KindSymbol,
		PrintName:   h.newChar(name),
		GlobalValue: heap.MissingArg,
	}
	h.symbols[name] = s
	return s
}

func (h *Heap) newChar(s string) *heap.Cell {
	return &heap.Cell{Kind: heap.KindChar, CharBytes: []byte(s), CharEnc: heap.EncUTF8, Length: len(s)}
}

// SnapOldToNew implements barrier.ListMover: it unlinks c from its
// current Old[class][gen] list and relinks it onto
// OldToNew[class][gen], the only list movement the write barrier
// itself performs.
func (h *Heap) SnapOldToNew(c *heap.Cell) {
	if c == nil || c.List != heap.ListOld {
		return
	}
	old := h.oldList[c.Class][c.Gen]
	old.Unlink(c)
	dst := h.oldToNew[c.Class][c.Gen]
	dst.PushFront(c)
	c.List = heap.ListOldToNew
}

// acquire/release implement the debug-mode thread-identity check: only
// one goroutine may hold the heap's token at a time, so a caller that
// re-enters (or a second goroutine touching the heap concurrently)
// finds the token missing and panics rather than corrupting a shared
// list. Builds without the debugthreadcheck tag compile these out.
func (h *Heap) acquire() {
	acquireToken(h)
}

func (h *Heap) release() {
	releaseToken(h)
}
