package gc

import (
	"birch_go/pkg/barrier"
	"birch_go/pkg/heap"
)

// Every mutator below routes through barrier.Reassign: decrement the
// slot's old occupant, increment the new one, then run the write
// barrier so an Old cell gaining a pointer into New gets snapped onto
// OldToNew before the next collection. These are methods on Heap
// (which implements barrier.ListMover), not on heap.Cell, to keep
// pkg/heap free of a dependency on the collector.

// SetCar sets c.Car to v.
func (h *Heap) SetCar(c, v *heap.Cell) {
	barrier.Reassign(h, c, c.Car, v)
	c.Car = v
}

// SetCdr sets c.Cdr to v.
func (h *Heap) SetCdr(c, v *heap.Cell) {
	barrier.Reassign(h, c, c.Cdr, v)
	c.Cdr = v
}

// SetTag sets c.Tag to v.
func (h *Heap) SetTag(c, v *heap.Cell) {
	barrier.Reassign(h, c, c.Tag, v)
	c.Tag = v
}

// SetAttrib sets c.Attrib, the pairlist of named attributes shared by
// every Kind.
func (h *Heap) SetAttrib(c, v *heap.Cell) {
	barrier.Reassign(h, c, c.Attrib, v)
	c.Attrib = v
}

// SetFormals sets a Closure's formal-argument list.
func (h *Heap) SetFormals(c, v *heap.Cell) {
	barrier.Reassign(h, c, c.Formals, v)
	c.Formals = v
}

// SetBody sets a Closure's body expression.
func (h *Heap) SetBody(c, v *heap.Cell) {
	barrier.Reassign(h, c, c.Body, v)
	c.Body = v
}

// SetClosureEnv sets a Closure's defining environment.
func (h *Heap) SetClosureEnv(c, v *heap.Cell) {
	barrier.Reassign(h, c, c.Env, v)
	c.Env = v
}

// SetPromiseCode sets a Promise's unevaluated code.
func (h *Heap) SetPromiseCode(c, v *heap.Cell) {
	barrier.Reassign(h, c, c.PCode, v)
	c.PCode = v
}

// SetPromiseEnv sets a Promise's evaluation environment.
func (h *Heap) SetPromiseEnv(c, v *heap.Cell) {
	barrier.Reassign(h, c, c.PEnv, v)
	c.PEnv = v
}

// SetPromiseValue sets a Promise's forced value and marks it seen.
func (h *Heap) SetPromiseValue(c, v *heap.Cell) {
	barrier.Reassign(h, c, c.PValue, v)
	c.PValue = v
	c.PSeen = true
}

// SetFrame sets an Environment's binding frame.
func (h *Heap) SetFrame(c, v *heap.Cell) {
	barrier.Reassign(h, c, c.Frame, v)
	c.Frame = v
}

// SetEnclosing sets an Environment's enclosing (lexical parent) environment.
func (h *Heap) SetEnclosing(c, v *heap.Cell) {
	barrier.Reassign(h, c, c.Enclosing, v)
	c.Enclosing = v
}

// SetHashtab sets an Environment's hash table, when the frame is large
// enough to warrant one.
func (h *Heap) SetHashtab(c, v *heap.Cell) {
	barrier.Reassign(h, c, c.Hashtab, v)
	c.Hashtab = v
}

// SetGlobalValue sets a Symbol's bound value.
func (h *Heap) SetGlobalValue(c, v *heap.Cell) {
	barrier.Reassign(h, c, c.GlobalValue, v)
	c.GlobalValue = v
}

// SetInternal sets a Symbol's .Internal binding.
func (h *Heap) SetInternal(c, v *heap.Cell) {
	barrier.Reassign(h, c, c.Internal, v)
	c.Internal = v
}

// SetBytecodeCode sets a Bytecode cell's code slot.
func (h *Heap) SetBytecodeCode(c, v *heap.Cell) {
	barrier.Reassign(h, c, c.BCCode, v)
	c.BCCode = v
}

// SetBytecodeEnv sets a Bytecode cell's environment slot.
func (h *Heap) SetBytecodeEnv(c, v *heap.Cell) {
	barrier.Reassign(h, c, c.BCEnv, v)
	c.BCEnv = v
}

// SetVectorElt sets the i'th element of a List/Expression/String vector,
// each element itself a *heap.Cell (a Char cell, for String).
func (h *Heap) SetVectorElt(c *heap.Cell, i int, v *heap.Cell) {
	barrier.Reassign(h, c, c.Strs[i], v)
	c.Strs[i] = v
}

// SetStringElt is SetVectorElt specialized for String vectors, where
// the element must itself be a Char cell.
func (h *Heap) SetStringElt(c *heap.Cell, i int, v *heap.Cell) {
	h.SetVectorElt(c, i, v)
}

// SetExtPtrProtected sets an ExternalPointer's protected companion value.
func (h *Heap) SetExtPtrProtected(c, v *heap.Cell) {
	barrier.Reassign(h, c, c.Protected, v)
	c.Protected = v
}

// SetExtPtrTag sets an ExternalPointer's tag value.
func (h *Heap) SetExtPtrTag(c, v *heap.Cell) {
	barrier.Reassign(h, c, c.ExtTag, v)
	c.ExtTag = v
}
