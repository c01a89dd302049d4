//go:build windows

package vmem

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// reserveChunk is the increment used when reserving the fixed region on
// Windows. Windows assumes reserving address space implies enough physical
// memory exists to eventually fill it, so the reservation is done in many
// small VirtualAlloc calls instead of one giant one — the same workaround
// gc_get_memory uses under __MINGW32__.
const reserveChunk = 256 * 1024 * 1024

// ReserveFixed reserves size bytes of address space starting exactly at
// base, in reserveChunk-sized increments.
func ReserveFixed(base, size uintptr) error {
	for off := uintptr(0); off < size; off += reserveChunk {
		length := reserveChunk
		if off+reserveChunk > size {
			length = int(size - off)
		}
		addr, err := windows.VirtualAlloc(base+off, uintptr(length), windows.MEM_RESERVE, windows.PAGE_READWRITE)
		if err != nil || addr != base+off {
			if err == nil {
				err = fmt.Errorf("kernel placed chunk at %#x, wanted %#x", addr, base+off)
			}
			if off > 0 {
				windows.VirtualFree(base, 0, windows.MEM_RELEASE)
			}
			return fmt.Errorf("vmem: fixed reservation at %#x failed: %w", base+off, err)
		}
	}
	return nil
}

// ReserveAnonymous reserves and commits size bytes anywhere in the address
// space, returning its base address.
func ReserveAnonymous(size uintptr) (uintptr, error) {
	addr, err := windows.VirtualAlloc(0, size, windows.MEM_RESERVE|windows.MEM_COMMIT, windows.PAGE_READWRITE)
	if err != nil {
		return 0, fmt.Errorf("vmem: anonymous reservation of %d bytes failed: %w", size, err)
	}
	return addr, nil
}

// Commit makes [addr, addr+size) backed by physical memory, matching
// gc_protect_memory's Windows branch (a real VirtualAlloc MEM_COMMIT, unlike
// the Unix branch where the pages are already accessible).
func Commit(addr, size uintptr) error {
	base := AlignDownPage(addr)
	length := size + (addr - base)
	got, err := windows.VirtualAlloc(base, length, windows.MEM_COMMIT, windows.PAGE_READWRITE)
	if err != nil || got != base {
		if err == nil {
			err = fmt.Errorf("kernel committed at %#x, wanted %#x", got, base)
		}
		return fmt.Errorf("vmem: commit %#x+%d failed: %w", addr, size, err)
	}
	return nil
}

// Decommit returns the physical pages backing [addr, addr+size) to the OS
// while keeping the address range reserved. The original C source never
// decommits on Windows (the returning sweep is a no-op there); this
// implementation decommits on every platform — see DESIGN.md.
func Decommit(addr, size uintptr) error {
	if size == 0 {
		return nil
	}
	if err := windows.VirtualFree(addr, size, windows.MEM_DECOMMIT); err != nil {
		return fmt.Errorf("vmem: decommit %#x+%d failed: %w", addr, size, err)
	}
	return nil
}

// Zero resets [addr, addr+size) to all-zero bytes without decommitting it,
// matching gc_zero_memory's Windows branch (a plain memset): unlike Decommit,
// the range stays committed and immediately readable afterward.
func Zero(addr, size uintptr) error {
	if size == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(size))
	for i := range b {
		b[i] = 0
	}
	return nil
}

// Release unmaps [addr, addr+size) entirely.
func Release(addr, size uintptr) error {
	if addr == 0 {
		return nil
	}
	if err := windows.VirtualFree(addr, 0, windows.MEM_RELEASE); err != nil {
		return fmt.Errorf("vmem: release %#x failed: %w", addr, err)
	}
	return nil
}

// StackBottom discovers the bottom of the current thread's stack by
// walking VirtualQuery results upward from stackTop until it leaves the
// committed region backing the stack. This plays the role of the TEB
// NtTib.StackBase lookup in the original source, without requiring direct
// TEB access (not exposed by golang.org/x/sys/windows).
func StackBottom(stackTop uintptr) (uintptr, error) {
	var info windows.MemoryBasicInformation
	addr := AlignDownPage(stackTop)
	allocationBase := uintptr(0)
	for {
		if err := windows.VirtualQuery(addr, &info, unsafe.Sizeof(info)); err != nil {
			return 0, fmt.Errorf("vmem: stack bottom discovery failed at %#x: %w", addr, err)
		}
		if allocationBase == 0 {
			allocationBase = info.AllocationBase
		}
		if info.State != windows.MEM_COMMIT || info.AllocationBase != allocationBase {
			break
		}
		addr = info.BaseAddress + info.RegionSize
	}
	return addr - unsafe.Sizeof(uintptr(0)), nil
}
