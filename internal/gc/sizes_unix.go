//go:build !windows

package gc

// regionSize is the size of each region's virtual address range: 4 GiB on
// platforms where virtual memory is cheap to reserve.
const regionSize = uintptr(4) << 30
