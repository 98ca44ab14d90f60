// Package protect implements the three GC-root anchoring mechanisms a
// non-moving collector needs for values that aren't reachable from
// normal program roots: a scoped protect stack for C-frame
// locals, named precious multi-sets for longer-lived anchors (the
// parser uses one instead of sharing the protect stack), and a
// hash-bucketed global preserve list.
package protect

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/cespare/xxhash/v2"

	"birch_go/pkg/heap"
)

// ErrStackOverflow is raised when Protect is called with the stack
// already at its configured limit.
type ErrStackOverflow struct {
	Limit int
}

func (e ErrStackOverflow) Error() string {
	return fmt.Sprintf("protect stack overflow (limit %d)", e.Limit)
}

// Stack is the scoped-root guard stack: protect pushes, unprotect pops.
type Stack struct {
	slots []*heap.Cell
	limit int
}

// NewStack creates a protect stack with the given node limit.
func NewStack(limit int) *Stack {
	return &Stack{limit: limit}
}

// Protect pushes v as a new root and returns its stack index. It panics
// with ErrStackOverflow once the stack is already at its configured
// limit; callers that can recover (the parser, evaluator) are expected
// to do so at their nearest top-level boundary.
func (s *Stack) Protect(v *heap.Cell) int {
	if len(s.slots) >= s.limit {
		panic(ErrStackOverflow{Limit: s.limit})
	}
	s.slots = append(s.slots, v)
	return len(s.slots) - 1
}

// ProtectWithIndex is an alias for Protect, kept as a distinct name
// since both push a root and return its index for later Reprotect
// calls.
func (s *Stack) ProtectWithIndex(v *heap.Cell) int {
	return s.Protect(v)
}

// Unprotect pops n roots off the stack.
func (s *Stack) Unprotect(n int) {
	if n > len(s.slots) {
		n = len(s.slots)
	}
	s.slots = s.slots[:len(s.slots)-n]
}

// Reprotect replaces the root at index i in place.
func (s *Stack) Reprotect(v *heap.Cell, i int) {
	if i >= 0 && i < len(s.slots) {
		s.slots[i] = v
	}
}

// Len reports the current stack depth.
func (s *Stack) Len() int { return len(s.slots) }

// Roots invokes fn for every value currently rooted by the stack.
func (s *Stack) Roots(fn func(*heap.Cell)) {
	for _, v := range s.slots {
		fn(v)
	}
}

// Multiset is the precious multi-set: a bag of rooted values
// used by callers that can't thread a protect-stack guard through,
// most notably the parser rooting lexer-produced values.
type Multiset struct {
	slots []*heap.Cell
}

// NewMultiset creates an empty precious multi-set.
func NewMultiset() *Multiset {
	return &Multiset{}
}

// Preserve appends v, growing the backing slice as needed.
func (m *Multiset) Preserve(v *heap.Cell) {
	m.slots = append(m.slots, v)
}

// Release removes a single occurrence of v by identity, scanning from
// the end.
func (m *Multiset) Release(v *heap.Cell) {
	for i := len(m.slots) - 1; i >= 0; i-- {
		if m.slots[i] == v {
			m.slots = append(m.slots[:i], m.slots[i+1:]...)
			return
		}
	}
}

// Count returns the number of values currently preserved.
func (m *Multiset) Count() int { return len(m.slots) }

// ReleaseAll empties the multiset, used when finalising parse state.
func (m *Multiset) ReleaseAll() {
	m.slots = m.slots[:0]
}

// Roots invokes fn for every value preserved in the multiset.
func (m *Multiset) Roots(fn func(*heap.Cell)) {
	for _, v := range m.slots {
		fn(v)
	}
}

// numPreserveBuckets is the fixed bucket count for the hashed preserve
// list.
const numPreserveBuckets = 1024

// PreserveList is the global-root anchor used by preserve_object /
// release_object. When hashed, deletion is near-constant time via
// a pointer-hashed bucket vector (R_HASH_PRECIOUS); otherwise it
// behaves as one flat bucket with linear-scan deletion.
type PreserveList struct {
	buckets [numPreserveBuckets][]*heap.Cell
	hashed  bool
}

// NewPreserveList creates a preserve list; hashed selects bucketed
// lookup over a single flat list.
func NewPreserveList(hashed bool) *PreserveList {
	return &PreserveList{hashed: hashed}
}

func bucketFor(v *heap.Cell) int {
	ptr := uintptr(unsafe.Pointer(v))
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(ptr))
	return int(xxhash.Sum64(buf[:]) % numPreserveBuckets)
}

// Preserve adds v as a permanent root until Release is called.
func (p *PreserveList) Preserve(v *heap.Cell) {
	b := 0
	if p.hashed {
		b = bucketFor(v)
	}
	p.buckets[b] = append(p.buckets[b], v)
}

// Release removes one occurrence of v from the preserve list.
func (p *PreserveList) Release(v *heap.Cell) {
	b := 0
	if p.hashed {
		b = bucketFor(v)
	}
	bucket := p.buckets[b]
	for i := len(bucket) - 1; i >= 0; i-- {
		if bucket[i] == v {
			p.buckets[b] = append(bucket[:i], bucket[i+1:]...)
			return
		}
	}
}

// Roots invokes fn for every value currently preserved.
func (p *PreserveList) Roots(fn func(*heap.Cell)) {
	for _, bucket := range p.buckets {
		for _, v := range bucket {
			fn(v)
		}
	}
}
