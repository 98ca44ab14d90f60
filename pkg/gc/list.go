package gc

import "birch_go/pkg/heap"

// cellList is a circular, doubly-linked list using the shared header's
// Prev/Next fields, with a sentinel node as its own anchor. Exactly one
// cellList holds any given live cell at a time.
type cellList struct {
	sentinel heap.Cell
	count    int
}

func newCellList() *cellList {
	l := &cellList{}
	l.sentinel.Prev = &l.sentinel
	l.sentinel.Next = &l.sentinel
	return l
}

// PushFront links c in just after the sentinel.
func (l *cellList) PushFront(c *heap.Cell) {
	c.Next = l.sentinel.Next
	c.Prev = &l.sentinel
	l.sentinel.Next.Prev = c
	l.sentinel.Next = c
	l.count++
}

// Unlink removes c from whichever list it is currently linked into
// (assumed to be l); safe to call during iteration via Each's
// next-pointer capture idiom.
func (l *cellList) Unlink(c *heap.Cell) {
	if c.Prev == nil || c.Next == nil {
		return
	}
	c.Prev.Next = c.Next
	c.Next.Prev = c.Prev
	c.Prev = nil
	c.Next = nil
	l.count--
}

// Each walks the list front to back. fn may unlink the current cell
// from l (not from any other list) without disrupting the walk.
func (l *cellList) Each(fn func(*heap.Cell)) {
	c := l.sentinel.Next
	for c != &l.sentinel {
		next := c.Next
		fn(c)
		c = next
	}
}

func (l *cellList) Len() int { return l.count }

// Drain unlinks and returns every cell currently on l, in order.
func (l *cellList) Drain() []*heap.Cell {
	out := make([]*heap.Cell, 0, l.count)
	l.Each(func(c *heap.Cell) {
		out = append(out, c)
	})
	for _, c := range out {
		l.Unlink(c)
	}
	return out
}
