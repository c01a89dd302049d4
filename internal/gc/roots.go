package gc

import (
	"unsafe"

	"github.com/GJDuck/GC/internal/allocator"
	"github.com/GJDuck/GC/internal/errors"
)

// rootNode is one entry in the roots list. A static root copies its (ptr,
// size) pair into the node's own embedded fields and points ptrptr/sizeptr
// at them; a dynamic root points ptrptr/sizeptr at caller-owned storage, so
// a growable buffer registered once stays valid across every reallocation.
type rootNode struct {
	ptr      unsafe.Pointer
	size     uintptr
	ptrptr   *unsafe.Pointer
	sizeptr  *uintptr
	elemsize uintptr
	next     *rootNode
}

// rootPool backs root-node storage. Root nodes live outside the collector's
// own heap on purpose: the marker must never mistake its own bookkeeping for
// mutator data.
var rootPool = allocator.NewPool(unsafe.Sizeof(rootNode{}))

// roots is the head of the LIFO roots list. Scanning walks it front-to-back,
// so the most recently registered root is visited first.
var roots *rootNode

func addRoot(node *rootNode) {
	node.next = roots
	roots = node
}

// Root registers a static root: the memory range [ptr, ptr+size) may hold
// collector pointers for as long as the process runs.
func Root(ptr unsafe.Pointer, size uintptr) error {
	if size > MaxRootSize {
		return errors.InvalidRootSize(size, MaxRootSize)
	}

	node := (*rootNode)(rootPool.Alloc())
	if node == nil {
		return errors.OutOfMemory(-1, unsafe.Sizeof(rootNode{}))
	}

	node.ptr = ptr
	node.size = size
	node.ptrptr = &node.ptr
	node.sizeptr = &node.size
	node.elemsize = 1
	addRoot(node)

	return nil
}

// DynamicRoot registers a root whose location and extent may change between
// collections: the marker re-reads *ptrptr and *sizeptr every time, and
// scans (*sizeptr)*elemsize bytes starting at *ptrptr. This is how a
// growable vector of fixed-size records can be registered once and remain
// valid as it reallocates.
func DynamicRoot(ptrptr *unsafe.Pointer, sizeptr *uintptr, elemsize uintptr) error {
	node := (*rootNode)(rootPool.Alloc())
	if node == nil {
		return errors.OutOfMemory(-1, unsafe.Sizeof(rootNode{}))
	}

	node.ptrptr = ptrptr
	node.sizeptr = sizeptr
	node.elemsize = elemsize
	addRoot(node)

	return nil
}
