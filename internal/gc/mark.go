package gc

import (
	"unsafe"

	"github.com/GJDuck/GC/internal/errors"
	"github.com/GJDuck/GC/internal/vmem"
)

// markFrame is one entry of the explicit work stack: a range of words still
// to be conservatively scanned. A sentinel frame with start==end==0 marks
// the bottom of the stack.
type markFrame struct {
	start uintptr
	end   uintptr
}

var (
	markStackBase uintptr
	numMarkFrames int
	totalSize     uintptr // sum of freeptr-startptr over all regions at the start of the most recent collection
	usedSize      uintptr
)

// initMarkStack reserves the mark-stack's own virtual range, separate from
// the region table, since its lifetime and growth pattern (one big
// contiguous range, grown downward, never individually freed) don't fit the
// size-segregated region model at all.
func initMarkStack() error {
	addr, err := vmem.ReserveAnonymous(MarkStackSize)
	if err != nil {
		return err
	}
	markStackBase = addr
	numMarkFrames = int(MarkStackSize / unsafe.Sizeof(markFrame{}))
	return nil
}

// markWord returns a pointer to the 64-bit unit of markptr holding bit idx.
func markWord(markptr uintptr, idx uint32) *uint64 {
	return (*uint64)(unsafe.Pointer(markptr + uintptr(idx/64)*8))
}

// isMarkedIndex reports whether slot idx's bit is set.
func isMarkedIndex(markptr uintptr, idx uint32) bool {
	w := markWord(markptr, idx)
	return *w&(uint64(1)<<(idx%64)) != 0
}

// markIndex idempotently sets slot idx's bit, returning true the first time
// it's set (i.e. the slot is newly discovered live) and false if it was
// already marked.
func markIndex(markptr uintptr, idx uint32) bool {
	w := markWord(markptr, idx)
	bit := uint64(1) << (idx % 64)
	if *w&bit != 0 {
		return false
	}
	*w |= bit
	return true
}

// markInit zeroes or freshly commits every non-empty region's mark bitmap
// ahead of a collection.
func markInit() {
	totalSize = 0

	for i := range regions {
		r := &regions[i]
		used := r.freeptr - r.startptr
		if used == 0 {
			continue
		}
		totalSize += used
		slots := used / r.size

		if r.markptr == 0 {
			marksize := regionSize/(r.size*8) + vmem.PageSize
			addr, err := vmem.ReserveAnonymous(marksize)
			if err != nil {
				handleError(true, errors.BitmapCommitFailed(i, err))
				return
			}
			r.markptr = addr
		} else {
			marksize := (slots + 7) / 8
			if err := vmem.Zero(r.markptr, marksize); err != nil {
				handleError(true, errors.BitmapCommitFailed(i, err))
				return
			}
		}
	}
}

// mark conservatively scans every root range, following every in-range word
// that looks like a live pointer until the work stack and the root list are
// both exhausted. The mark bit is the fixpoint: a slot is pushed onto the
// stack at most once, so cyclic structures need no special handling.
func mark(rootsHead *rootNode) {
	stack := unsafe.Slice((*markFrame)(unsafe.Pointer(markStackBase)), numMarkFrames)
	sp := numMarkFrames - 1
	stack[sp] = markFrame{}

	usedSize = 0
	roots := rootsHead

	for {
		start, end := stack[sp].start, stack[sp].end
		if start == 0 {
			if roots == nil {
				return
			}
			start = uintptr(*roots.ptrptr)
			end = start + (*roots.sizeptr)*roots.elemsize
			roots = roots.next
		} else {
			sp++
		}
		sp = markRange(stack, sp, start, end)
	}
}

// markRange scans [start, end) word by word, pushing the range of every
// newly-marked slot onto stack. If more than maxMarkPush frames are pushed
// while still inside this range, the oldest frame pushed since the last
// such swap trades places with the range still being scanned — a locality
// heuristic that bounds how deep the stack can grow from a single range,
// not a correctness requirement (any sound traversal order marks the same
// fixpoint).
func markRange(stack []markFrame, sp int, start, end uintptr) int {
	windowStart := sp
	pushed := 0

	ptrptr := start
	for ptrptr < end {
		p := *(*uintptr)(unsafe.Pointer(ptrptr))
		ptrptr += wordSize

		if !isptr(p) {
			continue
		}
		idx := index(p)
		r := &regions[idx]
		if p >= r.freeptr || p < r.startptr {
			continue
		}

		ptridx := uint32(objidx(p, r.invSize) - r.startidx)
		if !markIndex(r.markptr, ptridx) {
			continue
		}

		usedSize += r.size
		b := r.startptr + uintptr(ptridx)*r.size

		sp--
		stack[sp] = markFrame{b, b + r.size}
		pushed++

		if pushed > maxMarkPush {
			oldest := windowStart - 1
			tmp := stack[oldest]
			stack[oldest] = markFrame{ptrptr, end}
			ptrptr, end = tmp.start, tmp.end
			pushed = 0
			windowStart = sp
		}
	}

	return sp
}
