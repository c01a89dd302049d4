package gc

import (
	"math/bits"
	"unsafe"
)

// Tunable constants. Names follow the collector's own vocabulary for the
// quantities a host program may plausibly want to read or override.
const (
	Alignment   = 16
	NumRegions  = 768
	SpaceFactor = 1.75

	MinTrigger    = 100000
	FreelistLen   = 256
	ProtectLen    = 16 // pages
	MarkStackSize = uintptr(1) << 30
	ReturnSweep   = 8
	MaxRootSize   = uintptr(1) << 30
	maxMarkPush   = 1024

	// Unit is the allocation granularity of the smallest size class; bigger
	// classes scale it by NumRegions/3, splitting the region table into
	// three equal bands (small, big, huge).
	Unit          = uintptr(Alignment)
	BigIdxOffset  = NumRegions / 3
	HugeIdxOffset = 2 * NumRegions / 3
	BigUnit       = BigIdxOffset * Unit
	HugeUnit      = BigIdxOffset * BigUnit

	wordSize = unsafe.Sizeof(uintptr(0))
)

// reservationBase is the fixed virtual address the whole region table is
// reserved at. Chosen, as in the source this is ported from, to sit well
// inside the 8 TiB of address space Windows exposes to user processes.
const reservationBase = uintptr(0x200000000)

// indexUnit returns the size-class unit a region index belongs to.
//
// The big/huge bands start exactly at BigIdxOffset/HugeIdxOffset (a region
// at that boundary index belongs to the wider unit), which is what makes
// malloc(BigUnit) land in region BigIdxOffset rather than the last small
// region.
func indexUnit(idx int) uintptr {
	if idx >= HugeIdxOffset {
		return HugeUnit
	}
	if idx >= BigIdxOffset {
		return BigUnit
	}
	return Unit
}

// sizeUnit returns the size-class unit a requested byte size belongs to.
// A size exactly equal to a band's unit already belongs to that band, not
// the narrower one below it (see indexUnit).
func sizeUnit(size uintptr) uintptr {
	if size >= HugeUnit {
		return HugeUnit
	}
	if size >= BigUnit {
		return BigUnit
	}
	return Unit
}

// unitOffset returns the first region index of the band a unit belongs to.
func unitOffset(unit uintptr) int {
	switch unit {
	case Unit:
		return 0
	case BigUnit:
		return BigIdxOffset
	default:
		return HugeIdxOffset
	}
}

// sizeIndex maps a requested byte size to its region index.
func sizeIndex(size uintptr) int {
	unit := sizeUnit(size)
	return int((size-1)/unit) + unitOffset(unit)
}

// index returns the region index a reservation address belongs to. Only
// meaningful when isptr(p) holds.
func index(p uintptr) int {
	return int(p/regionSize - reservationBase/regionSize)
}

// isptr reports whether p could possibly be a pointer into the reservation.
// The subtraction underflows to a huge value for any p below reservationBase,
// so a single unsigned comparison handles both "too low" and "too high".
func isptr(p uintptr) bool {
	return p-reservationBase < uintptr(NumRegions)*regionSize
}

// objidx recovers p/size for a pointer whose region has reciprocal invSize,
// via the high half of the 128-bit product invSize*p — the same trick as an
// inline imul, done with math/bits since Go has no 128-bit integer type.
func objidx(p uintptr, invSize uint64) uint64 {
	hi, _ := bits.Mul64(invSize, uint64(p))
	return hi
}

// invSizeOf computes the reciprocal ceil(2^64 / size) used by objidx.
func invSizeOf(size uintptr) uint64 {
	return ^uint64(0)/uint64(size) + 1
}

// base recovers the start address of the slot containing p, given the
// region r that p falls in.
func base(p uintptr, r *region) uintptr {
	return uintptr(objidx(p, r.invSize)) * r.size
}

// SetTag returns ptr with tag (a value in [0, Alignment)) added to its
// address. The collector never looks at tag bits — isptr/index/objidx
// tolerate any in-range offset — so tags are purely a mutator convenience.
func SetTag(ptr unsafe.Pointer, tag uint32) unsafe.Pointer {
	return unsafe.Pointer(uintptr(ptr) + uintptr(tag))
}

// Tag extracts the low-bit tag from ptr.
func Tag(ptr unsafe.Pointer) uint32 {
	return uint32(uintptr(ptr)) & (Alignment - 1)
}

// ClearTag removes a previously added tag of the given value from ptr.
func ClearTag(ptr unsafe.Pointer, tag uint32) unsafe.Pointer {
	return unsafe.Pointer(uintptr(ptr) - uintptr(tag))
}

// StripTag removes whatever low-bit tag ptr currently carries.
func StripTag(ptr unsafe.Pointer) unsafe.Pointer {
	return unsafe.Pointer(uintptr(ptr) - uintptr(Tag(ptr)))
}

// SetExtTag returns ptr offset by an arbitrary positive byte tag, recoverable
// later via ExtTag/StripExtTag because Base can locate the slot start from
// any interior address, not just ones within the low alignment bits.
func SetExtTag(ptr unsafe.Pointer, tag uint32) unsafe.Pointer {
	return unsafe.Pointer(uintptr(ptr) + uintptr(tag))
}

// ExtTag returns the byte offset of ptr from the start of its slot.
func ExtTag(ptr unsafe.Pointer) uint32 {
	return uint32(uintptr(ptr) - uintptr(Base(ptr)))
}

// DelExtTag removes a previously added extended tag of the given value.
func DelExtTag(ptr unsafe.Pointer, tag uint32) unsafe.Pointer {
	return unsafe.Pointer(uintptr(ptr) - uintptr(tag))
}

// StripExtTag returns the start of the slot containing ptr, discarding any
// extended tag.
func StripExtTag(ptr unsafe.Pointer) unsafe.Pointer {
	return Base(ptr)
}

// Base returns the start of the allocation containing ptr. ptr may be an
// interior pointer; this recovers the slot's base address with no
// per-object header, using only the address and the region it falls in.
func Base(ptr unsafe.Pointer) unsafe.Pointer {
	p := uintptr(ptr)
	r := &regions[index(p)]
	return unsafe.Pointer(base(p, r))
}

// IsPointer reports whether ptr addresses memory inside the collector's
// reservation. It does not imply ptr has been allocated yet.
func IsPointer(ptr unsafe.Pointer) bool {
	return isptr(uintptr(ptr))
}

// Size returns the size-class byte size of the allocation containing ptr.
func Size(ptr unsafe.Pointer) uintptr {
	return regions[index(uintptr(ptr))].size
}
