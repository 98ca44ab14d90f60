package page

import (
	"testing"

	"birch_go/pkg/heap"
)

func TestPoolAllocGrowsAndLinks(t *testing.T) {
	p := NewPool(heap.ClassNonVector)
	if p.NodesPerPage <= 0 {
		t.Fatalf("NodesPerPage = %d, want > 0", p.NodesPerPage)
	}
	c := p.Alloc()
	if c.Kind != heap.KindNew {
		t.Errorf("freshly allocated node Kind = %v, want KindNew", c.Kind)
	}
	if p.AllocCount != 1 {
		t.Errorf("AllocCount = %d, want 1", p.AllocCount)
	}
	if len(p.Pages) != 1 {
		t.Errorf("Pages = %d, want 1 (grow should have added exactly one page)", len(p.Pages))
	}
}

func TestPoolFreeReturnsToFreeList(t *testing.T) {
	p := NewPool(heap.ClassNonVector)
	c := p.Alloc()
	before := p.FreeCount()
	p.Free(c)
	if p.FreeCount() != before+1 {
		t.Errorf("FreeCount() after Free = %d, want %d", p.FreeCount(), before+1)
	}
	if c.Kind != heap.KindFree {
		t.Errorf("freed node Kind = %v, want KindFree", c.Kind)
	}
	if p.AllocCount != 0 {
		t.Errorf("AllocCount after Free = %d, want 0", p.AllocCount)
	}
}

func TestPoolAllocReusesFreedNode(t *testing.T) {
	p := NewPool(heap.ClassNonVector)
	first := p.Alloc()
	p.Free(first)
	second := p.Alloc()
	if second != first {
		t.Error("Alloc after Free should reuse the freed node before growing a new page")
	}
	if len(p.Pages) != 1 {
		t.Errorf("Pages = %d, want 1 (no second page should have been grown)", len(p.Pages))
	}
}

func TestPoolTotalNodes(t *testing.T) {
	p := NewPool(heap.ClassNonVector)
	p.Alloc()
	p.Alloc()
	if p.TotalNodes() != p.NodesPerPage {
		t.Errorf("TotalNodes() = %d, want %d (exactly one page grown)", p.TotalNodes(), p.NodesPerPage)
	}
}

func TestReleasableAndRelease(t *testing.T) {
	p := NewPool(heap.ClassNonVector)
	nodes := make([]*heap.Cell, p.NodesPerPage)
	for i := range nodes {
		nodes[i] = p.Alloc()
	}
	pg := p.Pages[0]
	if p.Releasable(pg) {
		t.Fatal("a fully-allocated page should not be releasable")
	}
	for _, n := range nodes {
		p.Free(n)
	}
	if !p.Releasable(pg) {
		t.Fatal("a fully-freed page should be releasable")
	}
	removed := p.Release(pg)
	if removed != p.NodesPerPage {
		t.Errorf("Release() removed %d nodes, want %d", removed, p.NodesPerPage)
	}
	if len(p.Pages) != 0 {
		t.Errorf("Pages after Release = %d, want 0", len(p.Pages))
	}
	if p.FreeCount() != 0 {
		t.Errorf("FreeCount() after releasing the only page = %d, want 0", p.FreeCount())
	}
}

func TestClassForLength(t *testing.T) {
	if got := ClassForLength(1); got != heap.ClassVec1 {
		t.Errorf("ClassForLength(1) = %v, want ClassVec1", got)
	}
	if got := ClassForLength(ClassUnits[heap.ClassVec5]); got != heap.ClassVec5 {
		t.Errorf("ClassForLength(%d) = %v, want ClassVec5", ClassUnits[heap.ClassVec5], got)
	}
	if got := ClassForLength(ClassUnits[heap.ClassVec5] + 1); got != heap.ClassLarge {
		t.Errorf("ClassForLength(vec5+1) = %v, want ClassLarge", got)
	}
}

func TestLargeAllocIsUnpooled(t *testing.T) {
	c := LargeAlloc(heap.KindDouble)
	if c.Class != heap.ClassLarge {
		t.Errorf("LargeAlloc Class = %v, want ClassLarge", c.Class)
	}
	if c.Kind != heap.KindDouble {
		t.Errorf("LargeAlloc Kind = %v, want KindDouble", c.Kind)
	}
}
