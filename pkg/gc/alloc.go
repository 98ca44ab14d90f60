package gc

import (
	"birch_go/pkg/barrier"
	"birch_go/pkg/heap"
	"birch_go/pkg/page"
	"birch_go/pkg/weakref"
)

// allocSmall pulls one node of class from its pool, running torture
// and budget checks first, and links it onto New[class].
func (h *Heap) allocSmall(class heap.Class) (*heap.Cell, error) {
	if err := h.maybeCollectBeforeAlloc(1); err != nil {
		return nil, err
	}
	pool := h.pools[class]
	c := pool.Alloc()
	h.newList[class].PushFront(c)
	c.List = heap.ListNew
	c.Class = class
	h.nodeCount++
	return c, nil
}

// AllocCons allocates a Cons with the given children and a Nil tag,
// incrementing child refcounts. Arguments must already be rooted by
// the caller (on the protect stack or a named multi-set) since
// allocation is the collector's only suspension point.
func (h *Heap) AllocCons(car, cdr *heap.Cell) (*heap.Cell, error) {
	h.acquire()
	defer h.release()

	c, err := h.allocSmall(heap.ClassNonVector)
	if err != nil {
		return nil, err
	}
	c.Kind = heap.KindCons
	c.Car, c.Cdr, c.Tag = car, cdr, heap.Nil
	barrier.IncrementRefcnt(car)
	barrier.IncrementRefcnt(cdr)
	return c, nil
}

// AllocLanguage allocates a call node: a Cons subtype carrying the
// Language kind tag.
func (h *Heap) AllocLanguage(car, cdr *heap.Cell) (*heap.Cell, error) {
	c, err := h.AllocCons(car, cdr)
	if err != nil {
		return nil, err
	}
	c.Kind = heap.KindLanguage
	return c, nil
}

// AllocEnv allocates an Environment with the given frame and enclosing
// environment; hashtab starts Nil.
func (h *Heap) AllocEnv(frame, enclosing *heap.Cell) (*heap.Cell, error) {
	h.acquire()
	defer h.release()

	c, err := h.allocSmall(heap.ClassNonVector)
	if err != nil {
		return nil, err
	}
	c.Kind = heap.KindEnvironment
	c.Frame, c.Enclosing, c.Hashtab = frame, enclosing, heap.Nil
	barrier.IncrementRefcnt(frame)
	barrier.IncrementRefcnt(enclosing)
	return c, nil
}

// AllocPromise allocates a Promise thunk, unevaluated (PValue unbound,
// represented as Nil until forced).
func (h *Heap) AllocPromise(code, env *heap.Cell) (*heap.Cell, error) {
	h.acquire()
	defer h.release()

	c, err := h.allocSmall(heap.ClassNonVector)
	if err != nil {
		return nil, err
	}
	c.Kind = heap.KindPromise
	c.PCode, c.PEnv, c.PValue = code, env, heap.Nil
	barrier.IncrementRefcnt(code)
	barrier.IncrementRefcnt(env)
	return c, nil
}

// AllocClosure allocates a Closure with the given formals, body, and
// defining environment.
func (h *Heap) AllocClosure(formals, body, env *heap.Cell) (*heap.Cell, error) {
	h.acquire()
	defer h.release()

	c, err := h.allocSmall(heap.ClassNonVector)
	if err != nil {
		return nil, err
	}
	c.Kind = heap.KindClosure
	c.Formals, c.Body, c.Env = formals, body, env
	barrier.IncrementRefcnt(formals)
	barrier.IncrementRefcnt(body)
	barrier.IncrementRefcnt(env)
	return c, nil
}

// AllocWeakRef allocates a weak reference and registers it on the
// chain so the collector's weak-ref pass finds it on the next cycle.
func (h *Heap) AllocWeakRef(key, value, finalizer *heap.Cell, onExit bool) (*heap.Cell, error) {
	h.acquire()
	defer h.release()

	c, err := h.allocSmall(heap.ClassNonVector)
	if err != nil {
		return nil, err
	}
	c.Kind = heap.KindWeakRef
	c.WRKey, c.WRValue, c.WRFinalizer = key, value, finalizer
	c.WROnExit = onExit
	h.Weak.Register(c)
	return c, nil
}

// RegisterFinalizer attaches a native (host-side) finalizer to obj,
// distinct from AllocWeakRef's language-level finalizer value: fn runs
// from pkg/gc's finalizer queue, not as a call into evaluated code. The
// underlying weak ref keys and values obj itself, so the finalizer
// fires once obj is otherwise unreachable.
func (h *Heap) RegisterFinalizer(obj *heap.Cell, fn weakref.FinalizerFn, onExit bool) (*heap.Cell, error) {
	ref, err := h.AllocWeakRef(obj, obj, heap.Nil, onExit)
	if err != nil {
		return nil, err
	}
	h.finalizerFns[ref] = fn
	return ref, nil
}

// scheduleFinalizer moves a ready weak ref from the chain to the
// deferred finalizer queue, using the native callback registered via
// RegisterFinalizer when present, or a no-op otherwise (a ref created
// through AllocWeakRef with a language-level finalizer value is left
// for the evaluator to drain from the chain directly).
func (h *Heap) scheduleFinalizer(ref *heap.Cell) {
	h.Weak.Unlink(ref)
	fn, ok := h.finalizerFns[ref]
	if !ok {
		return
	}
	delete(h.finalizerFns, ref)
	h.Finalizers.Enqueue(ref.WRValue, fn, ref.WROnExit)
}

// vectorUnits estimates how many VEC-units (page.VecUnitBytes each) a
// vector of kind and length occupies, used to pick a size class.
func vectorUnits(kind heap.Kind, length int) int {
	elemBytes := 8
	switch kind {
	case heap.KindLogical, heap.KindInteger:
		elemBytes = 4
	case heap.KindDouble:
		elemBytes = 8
	case heap.KindComplex:
		elemBytes = 16
	case heap.KindRaw, heap.KindChar:
		elemBytes = 1
	case heap.KindString, heap.KindList, heap.KindExpression:
		elemBytes = 8
	}
	bytes := length * elemBytes
	units := bytes / page.VecUnitBytes
	if bytes%page.VecUnitBytes != 0 {
		units++
	}
	if units < 1 {
		units = 1
	}
	return units
}

// AllocVector allocates a vector of kind and length. Length 0 of List
// or Expression returns the shared Nil value. Fails with
// SizeExceedsLimit if length exceeds the configured maximum, or
// OutOfMemory/HeapExhausted if no collection can free enough room.
func (h *Heap) AllocVector(kind heap.Kind, length int) (*heap.Cell, error) {
	if length == 0 && (kind == heap.KindList || kind == heap.KindExpression) {
		return heap.Nil, nil
	}
	if length > h.budget.MaxVectorLength {
		return nil, SizeExceedsLimit{Requested: length, Limit: h.budget.MaxVectorLength}
	}

	h.acquire()
	defer h.release()

	units := vectorUnits(kind, length)
	class := page.ClassForLength(units)

	if err := h.maybeCollectBeforeAlloc(units); err != nil {
		return nil, err
	}

	var c *heap.Cell
	if class == heap.ClassLarge {
		c = page.LargeAlloc(kind)
		c.Class = heap.ClassLarge
	} else {
		pool := h.pools[class]
		c = pool.Alloc()
		c.Class = class
	}
	h.newList[class].PushFront(c)
	c.List = heap.ListNew
	c.Kind = kind
	c.Length = length
	c.TrueLength = length
	allocPayload(c, kind, length)
	h.vectorUnitsInUse += units
	h.nodeCount++
	return c, nil
}

func allocPayload(c *heap.Cell, kind heap.Kind, length int) {
	switch kind {
	case heap.KindLogical, heap.KindInteger:
		c.Ints = make([]int64, length)
	case heap.KindDouble:
		c.Floats = make([]float64, length)
	case heap.KindComplex:
		c.Complex = make([]complex128, length)
	case heap.KindRaw:
		c.Raws = make([]byte, length)
	case heap.KindChar:
		c.CharBytes = make([]byte, length)
		c.CharEnc = heap.EncUTF8
	case heap.KindString, heap.KindList, heap.KindExpression:
		c.Strs = make([]*heap.Cell, length)
		for i := range c.Strs {
			c.Strs[i] = heap.Nil
		}
	}
}
