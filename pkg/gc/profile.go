package gc

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"

	"birch_go/pkg/heap"
)

// Profile is memory_profile()'s 24 named slots: per-class New/Old/free
// node counts for every small class, the Large-vector count and byte
// total, and four running aggregates. Grouping by class rather than a
// flat [24]int64 gives callers a struct they can address by field
// instead of a magic index.
type Profile struct {
	NonVectorNew, NonVectorOld, NonVectorFree int64
	Vec1New, Vec1Old, Vec1Free                int64
	Vec2New, Vec2Old, Vec2Free                int64
	Vec3New, Vec3Old, Vec3Free                int64
	Vec4New, Vec4Old, Vec4Free                int64
	Vec5New, Vec5Old, Vec5Free                int64

	LargeVectorCount int64
	LargeVectorBytes int64

	NodesInUseTotal  int64
	NodesFreeTotal   int64
	VectorUnitsInUse int64
	FullGCCount      int64
}

func classOldCount(h *Heap, class heap.Class) int64 {
	var n int64
	for g := 0; g < heap.NumOldGenerations; g++ {
		n += int64(h.oldList[class][g].Len())
	}
	for g := 0; g < heap.NumOldGenerations; g++ {
		n += int64(h.oldToNew[class][g].Len())
	}
	return n
}

// MemoryProfile snapshots the 24 slots described above. It is a
// read-only query: it does not acquire the heap's token since it never
// mutates list membership, only counts it.
func (h *Heap) MemoryProfile() Profile {
	p := Profile{
		NonVectorNew:  int64(h.newList[heap.ClassNonVector].Len()),
		NonVectorOld:  classOldCount(h, heap.ClassNonVector),
		NonVectorFree: int64(h.pools[heap.ClassNonVector].FreeCount()),

		Vec1New: int64(h.newList[heap.ClassVec1].Len()), Vec1Old: classOldCount(h, heap.ClassVec1), Vec1Free: int64(h.pools[heap.ClassVec1].FreeCount()),
		Vec2New: int64(h.newList[heap.ClassVec2].Len()), Vec2Old: classOldCount(h, heap.ClassVec2), Vec2Free: int64(h.pools[heap.ClassVec2].FreeCount()),
		Vec3New: int64(h.newList[heap.ClassVec3].Len()), Vec3Old: classOldCount(h, heap.ClassVec3), Vec3Free: int64(h.pools[heap.ClassVec3].FreeCount()),
		Vec4New: int64(h.newList[heap.ClassVec4].Len()), Vec4Old: classOldCount(h, heap.ClassVec4), Vec4Free: int64(h.pools[heap.ClassVec4].FreeCount()),
		Vec5New: int64(h.newList[heap.ClassVec5].Len()), Vec5Old: classOldCount(h, heap.ClassVec5), Vec5Free: int64(h.pools[heap.ClassVec5].FreeCount()),

		NodesInUseTotal:  int64(h.nodeCount),
		VectorUnitsInUse: int64(h.vectorUnitsInUse),
		FullGCCount:      int64(h.fullGCCount),
	}
	p.LargeVectorCount = int64(h.newList[heap.ClassLarge].Len())
	for g := 0; g < heap.NumOldGenerations; g++ {
		p.LargeVectorCount += int64(h.oldList[heap.ClassLarge][g].Len())
		p.LargeVectorCount += int64(h.oldToNew[heap.ClassLarge][g].Len())
	}
	p.LargeVectorBytes = p.LargeVectorCount * page8Bytes
	for _, class := range smallClasses {
		p.NodesFreeTotal += int64(h.pools[class].FreeCount())
	}
	return p
}

const page8Bytes = 8

// MemReport writes a plain-text occupancy table to filename, one row per
// class (new/old/free counts) whose byte total is at least thresholdBytes,
// truncating the file unless appendMode is set.
func (h *Heap) MemReport(filename string, appendMode bool, thresholdBytes int64) error {
	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(filename, flags, 0o644)
	if err != nil {
		return errors.Wrapf(err, "mem_report: open %s", filename)
	}
	defer f.Close()

	p := h.MemoryProfile()
	var sb strings.Builder
	sb.WriteString("class       new       old      free\n")
	rows := []struct {
		name           string
		n, o, fr, used int64
	}{
		{"non-vector", p.NonVectorNew, p.NonVectorOld, p.NonVectorFree, 56},
		{"vec1", p.Vec1New, p.Vec1Old, p.Vec1Free, 8 * 8},
		{"vec2", p.Vec2New, p.Vec2Old, p.Vec2Free, 16 * 8},
		{"vec3", p.Vec3New, p.Vec3Old, p.Vec3Free, 32 * 8},
		{"vec4", p.Vec4New, p.Vec4Old, p.Vec4Free, 64 * 8},
		{"vec5", p.Vec5New, p.Vec5Old, p.Vec5Free, 128 * 8},
	}
	for _, r := range rows {
		bytes := (r.n + r.o + r.fr) * r.used
		if bytes < thresholdBytes {
			continue
		}
		fmt.Fprintf(&sb, "%-10s %8d %8d %8d  (%d bytes)\n", r.name, r.n, r.o, r.fr, bytes)
	}
	if p.LargeVectorBytes >= thresholdBytes {
		fmt.Fprintf(&sb, "%-10s %8d %8s %8s  (%d bytes)\n", "large", p.LargeVectorCount, "-", "-", p.LargeVectorBytes)
	}
	fmt.Fprintf(&sb, "\nfull GCs: %d   nodes in use: %d   vector units in use: %d\n",
		p.FullGCCount, p.NodesInUseTotal, p.VectorUnitsInUse)

	if _, err := f.WriteString(sb.String()); err != nil {
		return errors.Wrapf(err, "mem_report: write %s", filename)
	}
	return nil
}
