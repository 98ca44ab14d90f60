//go:build !debugthreadcheck

package gc

// acquireToken and releaseToken are no-ops in a non-debug build: the
// thread-identity check has a real (if small) cost on every entry
// point, so it is compiled out unless a host opts in with the
// debugthreadcheck build tag.
func acquireToken(h *Heap) {}

func releaseToken(h *Heap) {}
