package gc

import (
	"github.com/GJDuck/GC/internal/vmem"
)

// region is the per-size-class descriptor for one slice of the reservation.
// The table is a process-wide singleton, consistent with the single-threaded,
// single-heap model: there are no locks here because there is never more
// than one goroutine touching it at a time.
type region struct {
	size         uintptr
	invSize      uint64
	startptr     uintptr
	endptr       uintptr
	freeptr      uintptr
	protectptr   uintptr
	// freelist is the plain-address head of the freelist, 0 if empty. The
	// node it points to hides its own next link (complemented); this field
	// itself is never hidden.
	freelist     uintptr
	markstartptr uintptr
	markendptr   uintptr
	markptr      uintptr // base of the lazily committed mark bitmap, 0 if absent
	startidx     uint64
}

var regions [NumRegions]region

// initRegions reserves the fixed virtual range and fills in every region
// descriptor. Self-alignment (startptr rounded up to a multiple of size)
// is what lets objidx recover p/size exactly for every in-region pointer.
func initRegions() error {
	if err := vmem.ReserveFixed(reservationBase, uintptr(NumRegions)*regionSize); err != nil {
		return err
	}

	for i := 0; i < NumRegions; i++ {
		unit := indexUnit(i)
		size := uintptr(i-unitOffset(unit))*unit + unit

		startptr := reservationBase + uintptr(i)*regionSize
		if off := startptr % size; off != 0 {
			startptr += size - off
		}

		r := &regions[i]
		r.size = size
		r.invSize = invSizeOf(size)
		r.startptr = startptr
		r.endptr = reservationBase + uintptr(i+1)*regionSize
		r.freeptr = startptr
		r.protectptr = startptr
		r.markstartptr = startptr
		r.markendptr = startptr
		r.freelist = 0
		r.markptr = 0
		r.startidx = objidx(startptr, r.invSize)
	}

	return nil
}

// releaseRegions tears down the reservation, used only on a failed init.
func releaseRegions() {
	_ = vmem.Release(reservationBase, uintptr(NumRegions)*regionSize)
	for i := range regions {
		regions[i] = region{}
	}
}
