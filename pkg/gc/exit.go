package gc

import (
	"birch_go/pkg/heap"
	"birch_go/pkg/weakref"
)

// RunExitFinalizers runs every still-registered FINALIZE_ON_EXIT weak
// ref once, newest-first, then drains whatever that scheduled onto the
// pending queue. Unlike a GC's weak-ref pass, this runs regardless of
// reachability: shutdown means every exit finalizer fires, not just the
// ones whose key already died.
func (h *Heap) RunExitFinalizers(onPanic weakref.OnPanic) {
	h.acquire()
	var due []*heap.Cell
	h.Weak.Each(func(r *heap.Cell) {
		if r.WROnExit {
			due = append(due, r)
		}
	})
	for _, r := range due {
		h.scheduleFinalizer(r)
	}
	h.release()

	h.Finalizers.RunExit(onPanic)
}
