// Package gc implements a conservative, mark-sweep, non-moving collector
// for single-threaded 64-bit processes. There is no type information, no
// write barriers, no compaction, and no concurrency: a single goroutine
// drives allocation and collection, and the package keeps no locks because
// it assumes there is never more than one caller in it at a time.
package gc

import (
	"log"
	"os"
	"unsafe"

	"github.com/GJDuck/GC/internal/errors"
	"github.com/GJDuck/GC/internal/vmem"
)

// Config holds the tunables Init accepts. The zero value of each field
// means "use the collector's built-in default", set by defaultConfig.
type Config struct {
	ErrorCallback func(err error)
	Debug         bool
}

// Option mutates a Config. Passing none gets the collector's defaults,
// matching gc_init's lack of required arguments.
type Option func(*Config)

func defaultConfig() *Config {
	return &Config{}
}

// WithErrorCallback installs fn to run before any fatal error aborts the
// process and for every non-fatal error. Without a callback, non-fatal
// errors are not reported at all.
func WithErrorCallback(fn func(err error)) Option {
	return func(c *Config) { c.ErrorCallback = fn }
}

// WithDebug turns on a one-line trace of each collection to stderr (bytes
// spanned by the regions' bump pointers, bytes found live, sweep count).
// Off by default: never printed on the allocation hot path, only around
// Collect.
func WithDebug(enabled bool) Option {
	return func(c *Config) { c.Debug = enabled }
}

var (
	inited      bool
	enabled     = true
	debug       bool
	errorFunc   func(err error)
	stackBottom uintptr
)

// Init reserves the region table and mark stack and discovers the current
// goroutine's stack bottom, which each Collect uses to scan the stack as an
// implicit root. It must run before any other exported function in this
// package; calls after the first successful one do nothing and return nil.
func Init(options ...Option) error {
	if inited {
		return nil
	}

	cfg := defaultConfig()
	for _, opt := range options {
		opt(cfg)
	}
	errorFunc = cfg.ErrorCallback
	debug = cfg.Debug

	if unsafe.Sizeof(uintptr(0)) != 8 {
		handleError(true, errors.NotA64BitProcess())
		return errors.NotA64BitProcess()
	}

	top := stackTop()
	bottom, err := vmem.StackBottom(top)
	if err != nil {
		wrapped := errors.StackBottomFailed(err)
		handleError(true, wrapped)
		return wrapped
	}
	stackBottom = bottom

	if err := initRegions(); err != nil {
		wrapped := errors.ReservationFailed(err)
		handleError(true, wrapped)
		return wrapped
	}

	if err := initMarkStack(); err != nil {
		releaseRegions()
		wrapped := errors.ReservationFailed(err)
		handleError(true, wrapped)
		return wrapped
	}

	inited = true
	return nil
}

// Enable turns automatic collection back on after Disable.
func Enable() { enabled = true }

// Disable suspends collection: Malloc no longer triggers one, and an
// explicit Collect is a no-op until Enable is called.
func Disable() { enabled = false }

// SetErrorCallback installs fn as the callback handleError invokes ahead
// of every fatal abort and every non-fatal failure.
func SetErrorCallback(fn func(err error)) {
	errorFunc = fn
}

// handleError runs the installed error callback, if any, then either
// terminates the process (fatal) or returns control to the caller
// (non-fatal), matching the collector's three-tier error model: silent
// conditions (double free, bad pointer to Free) never reach here at all.
func handleError(fatal bool, err error) {
	if errorFunc != nil {
		errorFunc(err)
	}
	if !fatal {
		return
	}
	log.Printf("gc: fatal: %v", err)
	os.Exit(1)
}

// stackTop returns an address near the current goroutine's stack pointer,
// used as the starting point for StackBottom's upward probe and by
// maybeCollect to estimate the stack's size. Collect takes the top of the
// stack range it scans from a local of its own.
//
//go:noinline
func stackTop() uintptr {
	var local byte
	return uintptr(unsafe.Pointer(&local))
}

// Collect runs one full mark-sweep cycle: the current stack is scanned as
// an implicit root alongside every registered root, then each region's bump
// pointer is lowered over its trailing unreached slots and its freelist is
// emptied; the remaining unreached slots are reused later as Malloc
// harvests them from the mark window (and, periodically, pages deep in a
// region's dead space are decommitted back to the OS). A no-op while
// collection is disabled, matching gc_collect's enabled check in the
// original source.
func Collect() {
	if !enabled {
		return
	}

	var local byte
	top := uintptr(unsafe.Pointer(&local))

	stackRoot := rootNode{
		ptr:      unsafe.Pointer(top),
		size:     stackBottom - top,
		elemsize: 1,
	}
	stackRoot.ptrptr = &stackRoot.ptr
	stackRoot.sizeptr = &stackRoot.size
	stackRoot.next = roots

	markInit()
	mark(&stackRoot)
	before := totalSize
	sweep()

	if debug {
		log.Printf("gc: collect: total=%d live=%d sweeps=%d", before, usedSize, sweepCount)
	}
}

// Stats summarizes the state of the heap as of the most recent collection.
type Stats struct {
	TotalSize    uintptr // bytes spanned by all regions' bump pointers at the start of the last collection
	UsedSize     uintptr // bytes found live by the last collection
	TriggerSize  int64   // bytes of allocation that will trigger the next collection
	AllocSinceGC int64
	SweepCount   int
}

// GetStats reports the collector's current accounting. Safe to call at any
// time, including before the first collection.
func GetStats() Stats {
	return Stats{
		TotalSize:    totalSize,
		UsedSize:     usedSize,
		TriggerSize:  triggerSize,
		AllocSinceGC: allocSinceGC,
		SweepCount:   sweepCount,
	}
}
