package gc

// tortureState implements R_GCTORTURE/set_gc_torture: once armed, every
// gap-th allocation forces a full collection regardless of occupancy,
// so code paths that are only exercised under memory pressure get
// shaken out deterministically in testing. wait delays activation by
// that many allocations first; inhibitRelease skips page release on
// every full collection while it is set, so a reproduction doesn't
// also change the page layout a bug depends on.
type tortureState struct {
	gap            int
	wait           int
	inhibitRelease bool
	count          int
}

// SetTorture arms or disarms torture mode. gap <= 0 disables it.
func (h *Heap) SetTorture(gap, wait int, inhibitRelease bool) {
	h.torture = tortureState{gap: gap, wait: wait, inhibitRelease: inhibitRelease}
}

// due reports whether this allocation should force a torture collection,
// advancing the internal counters either way.
func (t *tortureState) due() bool {
	if t.gap <= 0 {
		return false
	}
	if t.wait > 0 {
		t.wait--
		return false
	}
	t.count++
	if t.count >= t.gap {
		t.count = 0
		return true
	}
	return false
}
