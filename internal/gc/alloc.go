package gc

import (
	"unsafe"

	"github.com/GJDuck/GC/internal/errors"
	"github.com/GJDuck/GC/internal/vmem"
)

var (
	allocSinceGC int64
	triggerSize  int64 = MinTrigger
)

// hide/unhide obfuscate a freelist link so the conservative marker, which
// walks slot contents word by word, can never mistake it for a live
// reference. The property required is only that the transform is
// undetectable by isptr, not that it specifically be a bitwise complement.
func hide(p uintptr) uintptr { return ^p }
func unhide(p uintptr) uintptr { return ^p }

// Malloc allocates size bytes, returning a pointer aligned to Alignment.
// Most callers pass a compile-time constant size, letting the size->index
// computation below fold away entirely.
func Malloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		size = 1
	}

	idx := sizeIndex(size)
	if idx >= NumRegions {
		handleError(true, errors.InvalidAllocationSize(size, uintptr(BigIdxOffset)*HugeUnit))
		return nil
	}

	return mallocIndex(idx)
}

// mallocIndex runs the allocation sequence for region idx: trigger check,
// freelist pop, mark-window harvest, bump pointer, commit-on-demand.
func mallocIndex(idx int) unsafe.Pointer {
	r := &regions[idx]

	maybeCollect(r.size)

	if ptr := popFreelist(r); ptr != 0 {
		return unsafe.Pointer(ptr)
	}

	if harvestMarkWindow(r) {
		if ptr := popFreelist(r); ptr != 0 {
			return unsafe.Pointer(ptr)
		}
	}

	ptr := r.freeptr
	r.freeptr = ptr + r.size
	if ptr >= r.endptr {
		handleError(false, errors.OutOfMemory(idx, r.size))
		return nil
	}

	if ptr+r.size >= r.protectptr {
		protectLen := uintptr(ProtectLen) * vmem.PageSize
		if protectLen < r.size {
			protectLen = r.size
		}
		if err := vmem.Commit(r.protectptr, protectLen); err != nil {
			handleError(false, errors.CommitFailed(idx, err))
			return nil
		}
		r.protectptr += protectLen
	}

	return unsafe.Pointer(ptr)
}

// popFreelist returns the head of r's freelist, or 0 if empty.
func popFreelist(r *region) uintptr {
	if r.freelist == 0 {
		return 0
	}
	ptr := r.freelist
	next := unhide(*(*uintptr)(unsafe.Pointer(ptr)))
	r.freelist = next
	return ptr
}

// harvestMarkWindow moves up to FreelistLen unmarked slots from the mark
// window onto the freelist, advancing markstartptr as it goes. Returns
// whether anything was harvested.
func harvestMarkWindow(r *region) bool {
	if r.markstartptr >= r.markendptr {
		return false
	}

	ptr := r.markstartptr
	ptridx := uint32(objidx(ptr, r.invSize) - r.startidx)
	harvested := 0

	for harvested < FreelistLen && ptr < r.markendptr {
		if !isMarkedIndex(r.markptr, ptridx) {
			*(*uintptr)(unsafe.Pointer(ptr)) = hide(r.freelist)
			r.freelist = ptr
			harvested++
		}
		ptr += r.size
		ptridx++
	}

	r.markstartptr = ptr
	return harvested > 0
}

// maybeCollect adds size to the running allocation total and runs a full
// collection when the budget set by the previous collection is exceeded.
func maybeCollect(size uintptr) {
	allocSinceGC += int64(size)
	if allocSinceGC < triggerSize {
		return
	}
	if !enabled {
		return
	}

	Collect()

	scanSize := int64(0)
	stackSize := int64(stackBottom - stackTop())
	scanSize += 2 * stackSize
	for r := roots; r != nil; r = r.next {
		scanSize += int64(*r.sizeptr * r.elemsize)
	}
	scanSize += 2 * int64(usedSize)

	trigger := int64(float64(scanSize) / SpaceFactor)
	if trigger < MinTrigger {
		trigger = MinTrigger
	}
	triggerSize = trigger
	allocSinceGC = int64(size)
}

// Realloc resizes the allocation at ptr. If ptr is nil it behaves like
// Malloc. If the requested size maps to the same region as ptr already
// occupies, ptr is returned unchanged. Otherwise a new allocation is made,
// min(size, oldSize) bytes are copied over, and ptr is freed.
func Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	if ptr == nil {
		return Malloc(size)
	}

	idxSize := sizeIndex(size)
	idxPtr := index(uintptr(ptr))
	if idxSize == idxPtr {
		return ptr
	}

	newPtr := Malloc(size)
	if newPtr == nil {
		return nil
	}

	r := &regions[idxPtr]
	cpy := size
	if r.size < cpy {
		cpy = r.size
	}
	copyBytes(newPtr, ptr, cpy)

	freeNonNull(ptr)

	return newPtr
}

// Free pushes ptr onto its region's freelist; Free(nil) does nothing.
// Invalid and double-freed pointers are not detected and are pushed like
// any other: the design accepts that corruption risk in exchange for an
// unconditional O(1) free on the hot path.
func Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}
	freeNonNull(ptr)
}

func freeNonNull(ptr unsafe.Pointer) {
	idx := index(uintptr(ptr))
	r := &regions[idx]

	old := r.freelist
	*(*uintptr)(unsafe.Pointer(ptr)) = hide(old)
	r.freelist = uintptr(ptr)

	// Mirrors the upstream accounting exactly: the trigger budget is
	// debited by the region index, not the freed byte count.
	allocSinceGC -= int64(idx)
}

// Strdup returns a collector-owned, nul-terminated copy of s's bytes.
func Strdup(s string) unsafe.Pointer {
	ptr := Malloc(uintptr(len(s)) + 1)
	if ptr == nil {
		return nil
	}
	dst := unsafe.Slice((*byte)(ptr), len(s)+1)
	copy(dst, s)
	dst[len(s)] = 0
	return ptr
}

func copyBytes(dst, src unsafe.Pointer, size uintptr) {
	dstSlice := unsafe.Slice((*byte)(dst), int(size))
	srcSlice := unsafe.Slice((*byte)(src), int(size))
	copy(dstSlice, srcSlice)
}
