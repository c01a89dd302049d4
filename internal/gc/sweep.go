package gc

import (
	"github.com/GJDuck/GC/internal/vmem"
)

var sweepCount int

// sweep walks every non-empty region from its high-water mark downward,
// retracting freeptr over the trailing dead run and, on a returning sweep,
// decommitting whole pages covered by dead runs further down. The freelist
// is intentionally left empty afterward: the allocator's mark-window
// harvest rebuilds it lazily, co-locating bitmap reads with the allocation
// sites that actually need them.
func sweep() {
	sweepCount++
	returning := sweepCount%ReturnSweep == 0

	for i := range regions {
		r := &regions[i]
		if r.freeptr == r.startptr {
			continue
		}
		if i >= BigIdxOffset {
			returning = true
		}

		size := r.size
		lastIdx := int((r.freeptr-r.startptr)/size) - 1
		target := lastIdx / 2

		freesize := uintptr(0)
		start := true
		ptridx := lastIdx

		for {
			if ptridx < target || isMarkedIndex(r.markptr, uint32(ptridx)) {
				if freesize >= 3*vmem.PageSize {
					addr := r.startptr + size*uintptr(ptridx+1)
					if diff := addr % vmem.PageSize; diff != 0 {
						pad := vmem.PageSize - diff
						addr += pad
						freesize -= pad
					}
					freesize -= freesize % vmem.PageSize
					if freesize > 0 {
						_ = vmem.Decommit(addr, freesize)
					}
				}
				freesize = 0

				if start {
					r.freeptr = r.startptr + size*uintptr(ptridx+1)
					if !returning {
						break
					}
					start = false
				}
				if ptridx < target {
					break
				}
			} else {
				freesize += size
			}
			ptridx--
		}

		r.markstartptr = r.startptr
		r.markendptr = r.freeptr
		r.freelist = 0
	}
}
