package gc

import "birch_go/pkg/page"

// maxPagesReleasedPerGC bounds how many physically-empty pages a single
// full collection releases, so a workload oscillating around a page
// boundary doesn't spend a whole cycle doing nothing but release/grow.
const maxPagesReleasedPerGC = 64

// releaseIdlePages returns fully-empty pages to the Go allocator for
// every small class, up to maxPagesReleasedPerGC per cycle. Called at
// the end of a full collection, skipped entirely in torture mode with
// inhibitRelease set so a reproduction's page layout stays stable.
func (h *Heap) releaseIdlePages() {
	released := 0
	for _, class := range smallClasses {
		pool := h.pools[class]
		for _, pg := range append([]*page.Page(nil), pool.Pages...) {
			if released >= maxPagesReleasedPerGC {
				return
			}
			if pool.Releasable(pg) {
				pool.Release(pg)
				released++
			}
		}
	}
}
