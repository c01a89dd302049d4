// Command gcdemo exercises the collector's public API: initialization,
// rooted and dynamic allocations, an explicit collection, and the stats
// surface it leaves behind.
package main

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/GJDuck/GC/internal/gc"
)

type node struct {
	next unsafe.Pointer
	val  int
}

func main() {
	if err := gc.Init(
		gc.WithErrorCallback(func(err error) {
			fmt.Fprintf(os.Stderr, "gcdemo: %v\n", err)
		}),
		gc.WithDebug(true),
	); err != nil {
		fmt.Fprintf(os.Stderr, "gcdemo: init failed: %v\n", err)
		os.Exit(1)
	}

	var head unsafe.Pointer
	if err := gc.Root(unsafe.Pointer(&head), unsafe.Sizeof(head)); err != nil {
		fmt.Fprintf(os.Stderr, "gcdemo: root failed: %v\n", err)
		os.Exit(1)
	}

	for i := 0; i < 10; i++ {
		n := (*node)(gc.Malloc(unsafe.Sizeof(node{})))
		n.val = i
		n.next = head
		head = unsafe.Pointer(n)
	}

	// A growable vector of pointers, registered once as a dynamic root: the
	// collector re-reads vecPtr/vecLen on every collection, so the root
	// stays valid as the backing storage is reallocated to a bigger slot.
	elemSize := unsafe.Sizeof(unsafe.Pointer(nil))
	var vecLen uintptr = 4
	vecPtr := gc.Malloc(vecLen * elemSize)
	if err := gc.DynamicRoot(&vecPtr, &vecLen, elemSize); err != nil {
		fmt.Fprintf(os.Stderr, "gcdemo: dynamic root failed: %v\n", err)
		os.Exit(1)
	}

	vecLen = 8
	vecPtr = gc.Realloc(vecPtr, vecLen*elemSize)
	slots := unsafe.Slice((*unsafe.Pointer)(vecPtr), vecLen)
	slots[0] = head

	str := gc.Strdup("hello from the collector")
	fmt.Println(unsafe.String((*byte)(str), 25))

	gc.Collect()

	count := 0
	for p := head; p != nil; {
		n := (*node)(p)
		count++
		p = n.next
	}
	fmt.Printf("surviving list length: %d\n", count)

	stats := gc.GetStats()
	fmt.Printf("stats: total=%d used=%d sweeps=%d\n", stats.TotalSize, stats.UsedSize, stats.SweepCount)
}
