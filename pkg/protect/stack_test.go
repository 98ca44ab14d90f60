package protect

import (
	"testing"

	"birch_go/pkg/heap"
)

func rootedValues(roots func(func(*heap.Cell))) []*heap.Cell {
	var out []*heap.Cell
	roots(func(v *heap.Cell) { out = append(out, v) })
	return out
}

func TestStackProtectUnprotectRoots(t *testing.T) {
	s := NewStack(8)
	a, b := &heap.Cell{Kind: heap.KindSymbol}, &heap.Cell{Kind: heap.KindSymbol}
	s.Protect(a)
	s.Protect(b)
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	if got := rootedValues(s.Roots); len(got) != 2 || got[0] != a || got[1] != b {
		t.Errorf("Roots() = %v, want [a b]", got)
	}
	s.Unprotect(1)
	if s.Len() != 1 {
		t.Errorf("Len() after Unprotect(1) = %d, want 1", s.Len())
	}
	if got := rootedValues(s.Roots); len(got) != 1 || got[0] != a {
		t.Errorf("Roots() after Unprotect(1) = %v, want [a]", got)
	}
}

func TestStackUnprotectClampsToStackSize(t *testing.T) {
	s := NewStack(8)
	s.Protect(&heap.Cell{Kind: heap.KindSymbol})
	s.Unprotect(5)
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0 (Unprotect should clamp, not underflow)", s.Len())
	}
}

func TestStackReprotectReplacesInPlace(t *testing.T) {
	s := NewStack(8)
	a, b := &heap.Cell{Kind: heap.KindSymbol}, &heap.Cell{Kind: heap.KindSymbol}
	i := s.Protect(a)
	s.Reprotect(b, i)
	got := rootedValues(s.Roots)
	if len(got) != 1 || got[0] != b {
		t.Errorf("Roots() after Reprotect = %v, want [b]", got)
	}
}

func TestStackProtectPanicsAtLimit(t *testing.T) {
	s := NewStack(1)
	s.Protect(&heap.Cell{Kind: heap.KindSymbol})
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Protect at the limit did not panic")
		}
		if _, ok := r.(ErrStackOverflow); !ok {
			t.Errorf("recovered %v (%T), want ErrStackOverflow", r, r)
		}
	}()
	s.Protect(&heap.Cell{Kind: heap.KindSymbol})
}

func TestMultisetPreserveReleaseCount(t *testing.T) {
	m := NewMultiset()
	a, b := &heap.Cell{Kind: heap.KindSymbol}, &heap.Cell{Kind: heap.KindSymbol}
	m.Preserve(a)
	m.Preserve(a)
	m.Preserve(b)
	if m.Count() != 3 {
		t.Fatalf("Count() = %d, want 3 (a multiset keeps duplicates)", m.Count())
	}
	m.Release(a)
	if m.Count() != 2 {
		t.Fatalf("Count() after one Release(a) = %d, want 2", m.Count())
	}
	got := rootedValues(m.Roots)
	aCount := 0
	for _, v := range got {
		if v == a {
			aCount++
		}
	}
	if aCount != 1 {
		t.Errorf("a appears %d times after releasing one occurrence, want 1", aCount)
	}
}

func TestMultisetReleaseAll(t *testing.T) {
	m := NewMultiset()
	m.Preserve(&heap.Cell{Kind: heap.KindSymbol})
	m.Preserve(&heap.Cell{Kind: heap.KindSymbol})
	m.ReleaseAll()
	if m.Count() != 0 {
		t.Errorf("Count() after ReleaseAll = %d, want 0", m.Count())
	}
}

func TestPreserveListFlatRoundTrip(t *testing.T) {
	p := NewPreserveList(false)
	a, b := &heap.Cell{Kind: heap.KindSymbol}, &heap.Cell{Kind: heap.KindSymbol}
	p.Preserve(a)
	p.Preserve(b)
	got := rootedValues(p.Roots)
	if len(got) != 2 {
		t.Fatalf("Roots() = %d entries, want 2", len(got))
	}
	p.Release(a)
	got = rootedValues(p.Roots)
	if len(got) != 1 || got[0] != b {
		t.Errorf("Roots() after releasing a = %v, want [b]", got)
	}
}

func TestPreserveListHashedRoundTrip(t *testing.T) {
	p := NewPreserveList(true)
	cells := make([]*heap.Cell, 50)
	for i := range cells {
		cells[i] = &heap.Cell{Kind: heap.KindSymbol}
		p.Preserve(cells[i])
	}
	if got := len(rootedValues(p.Roots)); got != len(cells) {
		t.Fatalf("Roots() = %d entries, want %d", got, len(cells))
	}
	for _, c := range cells {
		p.Release(c)
	}
	if got := len(rootedValues(p.Roots)); got != 0 {
		t.Errorf("Roots() after releasing every cell = %d entries, want 0", got)
	}
}
