package gc

// MinFreeFrac is the post-collection occupancy threshold: if either
// budget still has less than this fraction free, the caller escalates
// to the next collection level before giving up.
const MinFreeFrac = 0.20

// Sizing constants for adjustOneSize: each growth step adds
// defaultGrowIncrFrac of the current size plus a per-budget minimum
// increment, and the early-growth heuristic applies for the first
// earlyGrowthGCs full collections. The grow/shrink occupancy fractions
// themselves are per-heap fields (nGrowFrac, nShrinkFrac, ...).
const (
	defaultGrowIncrFrac = 0.05
	defaultGrowIncrMin  = 50000
	earlyGrowthGCs      = 50
)

// adjustSizes runs once per full collection: it grows or shrinks nSize
// and vSize toward the current occupancy, subject to the configured
// budget ceiling, and applies the early-growth heuristic for the first
// earlyGrowthGCs cycles so a workload that is still ramping up doesn't
// thrash between GCs while it finds its working-set size.
func (h *Heap) adjustSizes() {
	nodesInUse := h.nodeCount
	h.nSize = adjustOneSize(nodesInUse, h.lastNodesInUse, h.nSize, h.nGrowFrac, h.nShrinkFrac, h.nGrowIncrMin, h.budget.MaxNodes, h.fullGCCount)
	h.lastNodesInUse = nodesInUse

	maxVectorUnits := h.budget.MaxVectorBytes / 8
	h.vSize = adjustOneSize(h.vectorUnitsInUse, h.vectorUnitsInUse, h.vSize, h.vGrowFrac, h.vShrinkFrac, 0, maxVectorUnits, h.fullGCCount)
}

func adjustOneSize(inUse, lastInUse, size int, growFrac, shrinkFrac float64, growIncrMin, max, fullGCCount int) int {
	if max > 0 && size > max {
		size = max
	}
	growTarget := float64(size) * growFrac
	if float64(inUse) > growTarget {
		incr := int(float64(size)*defaultGrowIncrFrac) + growIncrMin
		size += incr
	} else if fullGCCount > earlyGrowthGCs && float64(inUse) < float64(size)*shrinkFrac {
		size = inUse + inUse/3 + 1
	}
	if fullGCCount <= earlyGrowthGCs {
		// Early-growth heuristic: keep projected next-cycle occupancy
		// (inUse plus the delta since the last full GC) comfortably
		// under growFrac*size, so a ramping-up workload doesn't force a
		// GC on almost every allocation while its working set grows.
		delta := inUse - lastInUse
		if delta < 0 {
			delta = 0
		}
		projected := float64(inUse + delta)
		if projected > float64(size)*growFrac {
			size = int(projected/growFrac) + growIncrMin
		}
	}
	if max > 0 && size > max {
		size = max
	}
	return size
}

// freeFrac reports the fraction of budget headroom still free after a
// collection; used by maybeCollectBeforeAlloc to decide whether to
// escalate to the next level.
func (h *Heap) freeFrac() float64 {
	nodeFree := 1 - float64(h.nodeCount)/float64(max1(h.nSize))
	vecFree := 1 - float64(h.vectorUnitsInUse)/float64(max1(h.vSize))
	if nodeFree < vecFree {
		return nodeFree
	}
	return vecFree
}

func max1(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}
