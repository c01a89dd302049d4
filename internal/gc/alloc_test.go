package gc

import (
	"testing"
	"unsafe"
)

func TestMalloc(t *testing.T) {
	ensureInit(t)

	t.Run("ReturnsWritableMemoryOfRequestedSize", func(t *testing.T) {
		ptr := Malloc(100)
		if ptr == nil {
			t.Fatal("Malloc(100) returned nil")
		}
		if Size(ptr) < 100 {
			t.Errorf("Size() = %d, want >= 100", Size(ptr))
		}
		buf := unsafe.Slice((*byte)(ptr), 100)
		for i := range buf {
			buf[i] = byte(i)
		}
		for i, b := range buf {
			if b != byte(i) {
				t.Fatalf("byte %d = %d, want %d", i, b, byte(i))
			}
		}
	})

	t.Run("SmallSizesShareARegionBySizeClass", func(t *testing.T) {
		a := Malloc(8)
		b := Malloc(16)
		if index(uintptr(a)) != index(uintptr(b)) {
			t.Errorf("Malloc(8) and Malloc(16) landed in different regions: %d vs %d",
				index(uintptr(a)), index(uintptr(b)))
		}
	})

	t.Run("DifferentSizeClassesUseDifferentRegions", func(t *testing.T) {
		small := Malloc(8)
		big := Malloc(BigUnit + 1)
		if index(uintptr(small)) == index(uintptr(big)) {
			t.Error("small and big allocations landed in the same region")
		}
	})

	t.Run("IsPointerAndBaseAgreeWithAllocation", func(t *testing.T) {
		ptr := Malloc(32)
		if !IsPointer(ptr) {
			t.Error("IsPointer(ptr) should be true for a freshly allocated pointer")
		}
		interior := unsafe.Pointer(uintptr(ptr) + 5)
		if Base(interior) != ptr {
			t.Error("Base() did not recover the allocation start from an interior pointer")
		}
	})
}

func TestFreeAndReuse(t *testing.T) {
	ensureInit(t)

	t.Run("FreedSlotIsEligibleForReuseImmediately", func(t *testing.T) {
		r := &regions[sizeIndex(64)]
		before := r.freelist

		ptr := Malloc(64)
		Free(ptr)
		if r.freelist == before {
			t.Fatal("Free() did not push onto the freelist")
		}

		reused := Malloc(64)
		if reused != ptr {
			t.Errorf("Malloc() after Free() = %p, want reuse of %p", reused, ptr)
		}
	})

	t.Run("FreeOfNilIsANoop", func(t *testing.T) {
		Free(nil)
	})

	t.Run("HiddenFreelistLinkIsNotAPlainPointer", func(t *testing.T) {
		ptr := Malloc(64)
		Free(ptr)
		link := *(*uintptr)(unsafe.Pointer(ptr))
		if isptr(link) {
			t.Error("freelist link is visible as a plain in-range pointer")
		}
	})
}

func TestRealloc(t *testing.T) {
	ensureInit(t)

	t.Run("NilPointerBehavesLikeMalloc", func(t *testing.T) {
		ptr := Realloc(nil, 48)
		if ptr == nil {
			t.Fatal("Realloc(nil, 48) returned nil")
		}
	})

	t.Run("SameSizeClassReturnsSamePointer", func(t *testing.T) {
		ptr := Malloc(50)
		grown := Realloc(ptr, 60)
		if grown != ptr {
			t.Error("Realloc() within the same size class should return the original pointer")
		}
	})

	t.Run("GrowingClassCopiesContent", func(t *testing.T) {
		ptr := Malloc(8)
		buf := unsafe.Slice((*byte)(ptr), 8)
		for i := range buf {
			buf[i] = byte(0xAB)
		}

		grown := Realloc(ptr, BigUnit+1)
		if grown == nil {
			t.Fatal("Realloc() to a bigger class returned nil")
		}
		grownBuf := unsafe.Slice((*byte)(grown), 8)
		for i, b := range grownBuf {
			if b != 0xAB {
				t.Fatalf("byte %d = %#x after growing realloc, want 0xab", i, b)
			}
		}
	})
}

func TestStrdup(t *testing.T) {
	ensureInit(t)

	t.Run("CopiesBytesAndTerminates", func(t *testing.T) {
		s := "hello, gc"
		ptr := Strdup(s)
		buf := unsafe.Slice((*byte)(ptr), len(s)+1)
		if string(buf[:len(s)]) != s {
			t.Errorf("Strdup() copied %q, want %q", string(buf[:len(s)]), s)
		}
		if buf[len(s)] != 0 {
			t.Error("Strdup() did not nul-terminate")
		}
	})
}
