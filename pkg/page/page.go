// Package page implements the fixed-size, size-classed page allocator:
// pages of roughly BasePageSize bytes carved into nodes of one small
// size class, plus a pass-through for the Large class (vectors served
// directly as individually-sized allocations, no page).
package page

import "birch_go/pkg/heap"

// BasePageSize approximates the real allocator's ≈8000-byte page on a
// 64-bit host; it only drives how many nodes fit in one page, not actual
// byte layout (Go does not let us control struct packing the way the C
// original does).
const BasePageSize = 8000

// VecUnitBytes is sizeof(VECREC), the unit vector payloads are measured
// in; classes hold 8, 16, 32, 64, 128 VEC-units each.
const VecUnitBytes = 8

// ClassUnits is the VEC-unit capacity of each small vector class.
var ClassUnits = map[heap.Class]int{
	heap.ClassVec1: 8,
	heap.ClassVec2: 16,
	heap.ClassVec3: 32,
	heap.ClassVec4: 64,
	heap.ClassVec5: 128,
}

// nodesPerPage mirrors "BASE_PAGE_SIZE / node_size" for each class. The
// non-vector class's node size is an approximation of sizeof(Cell)'s
// fixed header; vector classes additionally carry their class's payload
// capacity.
func nodesPerPage(class heap.Class) int {
	switch class {
	case heap.ClassNonVector:
		return BasePageSize / 56
	case heap.ClassVec1, heap.ClassVec2, heap.ClassVec3, heap.ClassVec4, heap.ClassVec5:
		bytes := ClassUnits[class]*VecUnitBytes + 40
		n := BasePageSize / bytes
		if n < 1 {
			n = 1
		}
		return n
	default:
		return 0 // Custom/Large are not page-backed
	}
}

// Page is one slab of same-class nodes. Nodes are allocated together
// (so sweeping can walk them in memory order for the optional
// post-GC sort) and individually pushed onto the class's free
// list when unused.
type Page struct {
	Class heap.Class
	Nodes []*heap.Cell
}

// Pool owns every page of one size class plus the free list spanning
// them. Class Large is never pooled: LargeAlloc below serves it
// directly.
type Pool struct {
	Class        heap.Class
	Pages        []*Page
	free         *heap.Cell // free-list head, linked via Cell.Next
	freeCount    int
	NodesPerPage int
	AllocCount   int // nodes currently handed out (not on the free list)
}

// NewPool creates an empty pool for the given small/non-vector class.
func NewPool(class heap.Class) *Pool {
	return &Pool{Class: class, NodesPerPage: nodesPerPage(class)}
}

// grow appends one fresh page's worth of nodes to the pool's free list.
// Called only when the free list is empty.
func (p *Pool) grow() {
	n := p.NodesPerPage
	if n <= 0 {
		n = 1
	}
	pg := &Page{Class: p.Class, Nodes: make([]*heap.Cell, n)}
	for i := range pg.Nodes {
		c := &heap.Cell{Kind: heap.KindFree, Class: p.Class}
		pg.Nodes[i] = c
		c.Next = p.free
		p.free = c
		p.freeCount++
	}
	p.Pages = append(p.Pages, pg)
}

// Alloc pops a node from the free list, growing the pool with a new
// page first if necessary.
func (p *Pool) Alloc() *heap.Cell {
	if p.free == nil {
		p.grow()
	}
	c := p.free
	p.free = c.Next
	p.freeCount--
	c.Next = nil
	c.Kind = heap.KindNew
	p.AllocCount++
	return c
}

// Free returns a node to the pool's free list for reuse.
func (p *Pool) Free(c *heap.Cell) {
	*c = heap.Cell{Kind: heap.KindFree, Class: p.Class}
	c.Next = p.free
	p.free = c
	p.freeCount++
	if p.AllocCount > 0 {
		p.AllocCount--
	}
}

// FreeCount returns the number of nodes currently on the free list.
func (p *Pool) FreeCount() int { return p.freeCount }

// TotalNodes returns alloc_count + free_count across every page.
func (p *Pool) TotalNodes() int { return p.AllocCount + p.freeCount }

// Releasable reports whether every node of pg is currently free (i.e.
// the whole page could be physically released).
func (p *Pool) Releasable(pg *Page) bool {
	for _, n := range pg.Nodes {
		if n.Kind != heap.KindFree {
			return false
		}
	}
	return true
}

// Release removes pg from the pool: its nodes are unlinked from the
// free list and the page is dropped, returning how many nodes were
// freed. The caller (pkg/gc) is responsible for picking releasable
// pages and bounding how many are released per cycle.
func (p *Pool) Release(pg *Page) int {
	set := make(map[*heap.Cell]bool, len(pg.Nodes))
	for _, n := range pg.Nodes {
		set[n] = true
	}
	var newHead *heap.Cell
	var tail *heap.Cell
	removed := 0
	for c := p.free; c != nil; c = c.Next {
		if set[c] {
			removed++
			continue
		}
		if newHead == nil {
			newHead = c
		} else {
			tail.Next = c
		}
		tail = c
	}
	if tail != nil {
		tail.Next = nil
	}
	p.free = newHead
	p.freeCount -= removed

	out := p.Pages[:0]
	for _, existing := range p.Pages {
		if existing != pg {
			out = append(out, existing)
		}
	}
	p.Pages = out
	return removed
}

// LargeAlloc serves the Large class directly: one Cell per call, with
// its vector payload sized by the caller. There is no free list; large
// cells are released (garbage-collected by Go itself) when the last
// pkg/gc reference to them is dropped after sweep.
func LargeAlloc(kind heap.Kind) *heap.Cell {
	return &heap.Cell{Kind: kind, Class: heap.ClassLarge}
}

// ClassForLength picks the smallest size class whose node capacity (in
// VEC-units) covers length payload units, or Large if none fits.
func ClassForLength(lengthUnits int) heap.Class {
	for _, c := range []heap.Class{heap.ClassVec1, heap.ClassVec2, heap.ClassVec3, heap.ClassVec4, heap.ClassVec5} {
		if lengthUnits <= ClassUnits[c] {
			return c
		}
	}
	return heap.ClassLarge
}
