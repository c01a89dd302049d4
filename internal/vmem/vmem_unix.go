//go:build !windows

package vmem

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// view builds a zero-copy []byte over an existing mapping so the
// golang.org/x/sys/unix helpers that take a []byte (Mprotect, Madvise,
// Munmap) can operate on memory this package did not allocate as a Go
// slice in the first place.
func view(addr, size uintptr) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(size))
}

// ReserveFixed reserves size bytes of address space starting exactly at
// base. The mapping is backed by physical memory lazily (MAP_NORESERVE): no
// page is actually committed until first touched. This mirrors gc_get_memory
// in the original GJDuck/GC source, which relies on the same Linux/macOS
// overcommit behavior rather than an explicit two-phase reserve/commit.
func ReserveFixed(base, size uintptr) error {
	const flags = unix.MAP_PRIVATE | unix.MAP_ANON | unix.MAP_NORESERVE | unix.MAP_FIXED
	addr, _, errno := unix.Syscall6(unix.SYS_MMAP, base, size,
		uintptr(unix.PROT_READ|unix.PROT_WRITE), uintptr(flags), ^uintptr(0), 0)
	if errno != 0 {
		return fmt.Errorf("vmem: fixed reservation at %#x (%d bytes) failed: %w", base, size, errno)
	}
	if addr != base {
		unix.Syscall(unix.SYS_MUNMAP, addr, size, 0)
		return fmt.Errorf("vmem: kernel placed fixed reservation at %#x, wanted %#x", addr, base)
	}
	return nil
}

// ReserveAnonymous reserves and commits size bytes anywhere in the address
// space, returning its base address. Used for the mark stack and per-region
// mark bitmaps, neither of which needs a fixed address.
func ReserveAnonymous(size uintptr) (uintptr, error) {
	data, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANON|unix.MAP_NORESERVE)
	if err != nil {
		return 0, fmt.Errorf("vmem: anonymous reservation of %d bytes failed: %w", size, err)
	}
	return uintptr(unsafe.Pointer(&data[0])), nil
}

// Commit ensures [addr, addr+size) is readable/writable. On Unix this is
// largely a formality (the fixed reservation above is already mapped
// PROT_READ|PROT_WRITE and backed lazily), but it is still issued — exactly
// as gc_protect_memory does — so commit failures are observable the same
// way on every platform.
func Commit(addr, size uintptr) error {
	base := AlignDownPage(addr)
	length := size + (addr - base)
	if err := unix.Mprotect(view(base, length), unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return fmt.Errorf("vmem: commit %#x+%d failed: %w", addr, size, err)
	}
	return nil
}

// Decommit releases the physical pages backing [addr, addr+size) back to
// the OS while keeping the virtual mapping intact; a subsequent read
// returns zeroed memory. Both addr and size must already be page-aligned —
// callers (the sweeper) are responsible for that, matching the original's
// madvise(MADV_DONTNEED) call in gc_sweep.
func Decommit(addr, size uintptr) error {
	if size == 0 {
		return nil
	}
	if err := unix.Madvise(view(addr, size), unix.MADV_DONTNEED); err != nil {
		return fmt.Errorf("vmem: decommit %#x+%d failed: %w", addr, size, err)
	}
	return nil
}

// Zero resets [addr, addr+size) to all-zero bytes without changing its
// commit state, matching gc_zero_memory's non-Apple branch: MADV_DONTNEED
// discards the pages' contents but Linux's overcommit means a subsequent
// write still lands on demand-zeroed memory with no extra commit call.
func Zero(addr, size uintptr) error {
	if size == 0 {
		return nil
	}
	if err := unix.Madvise(view(addr, size), unix.MADV_DONTNEED); err != nil {
		return fmt.Errorf("vmem: zero %#x+%d failed: %w", addr, size, err)
	}
	return nil
}

// Release unmaps [addr, addr+size) entirely, surrendering the address
// range itself (not just the physical pages backing it).
func Release(addr, size uintptr) error {
	if addr == 0 {
		return nil
	}
	if err := unix.Munmap(view(addr, size)); err != nil {
		return fmt.Errorf("vmem: release %#x+%d failed: %w", addr, size, err)
	}
	return nil
}

// StackBottom discovers the bottom (highest address, since the stack grows
// down) of the current goroutine's OS stack by walking pages upward from
// stackTop using mincore() until the first unmapped page is found, exactly
// as gc_get_stackbottom does on Linux/macOS.
func StackBottom(stackTop uintptr) (uintptr, error) {
	addr := AlignUpPage(stackTop + PageSize)
	var vec [1]byte
	for {
		_, _, errno := unix.Syscall(unix.SYS_MINCORE, addr, uintptr(PageSize), uintptr(unsafe.Pointer(&vec[0])))
		if errno != 0 {
			if errno == unix.ENOMEM {
				break
			}
			return 0, fmt.Errorf("vmem: stack bottom discovery failed at %#x: %w", addr, errno)
		}
		addr += PageSize
	}
	return addr - unsafe.Sizeof(uintptr(0)), nil
}
