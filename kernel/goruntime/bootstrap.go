// Package goruntime contains code for bootstrapping Go runtime features such
// as the memory allocator.
package goruntime

import (
	"pfwm/kernel"
	"pfwm/kernel/mem"
	"unsafe"
)

var (
	mallocInitFn    = mallocInit
	algInitFn       = algInit
	modulesInitFn   = modulesInit
	typeLinksInitFn = typeLinksInit
	itabsInitFn     = itabsInit

	// bumpNext tracks the next unused address inside the heap arena
	// described by mem.HeapBase/mem.HeapSize. Unlike a demand-paged
	// kernel, the weird machine's supervisor runs with the first 2GiB
	// already identity-mapped via PSE large pages (see kernel/supervisor's
	// buildPD), so sysReserve/sysMap/sysAlloc never edit a page
	// table: they only ever bump this pointer through memory that is
	// already present and writable.
	bumpNext = mem.HeapBase
	bumpEnd  = mem.HeapBase + mem.HeapSize

	// A seed for the pseudo-random number generator used by getRandomData
	prngSeed uint32 = 0xdeadc0de
)

//go:linkname algInit runtime.alginit
func algInit()

//go:linkname modulesInit runtime.modulesinit
func modulesInit()

//go:linkname typeLinksInit runtime.typelinksinit
func typeLinksInit()

//go:linkname itabsInit runtime.itabsinit
func itabsInit()

//go:linkname mallocInit runtime.mallocinit
func mallocInit()

//go:linkname mSysStatInc runtime.mSysStatInc
func mSysStatInc(*uint64, uintptr)

// bumpAlloc reserves size bytes (rounded up to a page) from the heap
// arena and returns their start address, or 0 if the arena is exhausted.
func bumpAlloc(size uintptr) uintptr {
	regionSize := (size + mem.PageSize - 1) &^ (mem.PageSize - 1)
	start := bumpNext
	if start+regionSize > bumpEnd {
		return 0
	}

	bumpNext = start + regionSize
	return start
}

// sysReserve reserves address space without allocating any memory or
// establishing any page mappings.
//
// This function replaces runtime.sysReserve and is required for initializing
// the Go allocator.
//
//go:redirect-from runtime.sysReserve
//go:nosplit
func sysReserve(_ unsafe.Pointer, size uintptr, reserved *bool) unsafe.Pointer {
	addr := bumpAlloc(size)
	if addr == 0 {
		kfmtPanic(errHeapExhausted)
	}

	*reserved = true
	return unsafe.Pointer(addr)
}

// sysMap establishes a mapping for a particular memory region that has
// been reserved previously via a call to sysReserve. Since the region
// sysReserve handed out is already identity-mapped and writable, there is
// nothing to map here: sysMap only accounts for the allocation and hands
// the same address back.
//
// This function replaces runtime.sysMap and is required for initializing
// the Go allocator.
//
//go:redirect-from runtime.sysMap
//go:nosplit
func sysMap(virtAddr unsafe.Pointer, size uintptr, reserved bool, sysStat *uint64) unsafe.Pointer {
	if !reserved {
		panic("sysMap should only be called with reserved=true")
	}

	regionSize := (size + mem.PageSize - 1) &^ (mem.PageSize - 1)
	mSysStatInc(sysStat, regionSize)
	return virtAddr
}

// sysAlloc reserves and maps enough memory to satisfy the allocation
// request, returning the pointer to the region start.
//
// This function replaces runtime.sysAlloc and is required for initializing
// the Go allocator.
//
//go:redirect-from runtime.sysAlloc
//go:nosplit
func sysAlloc(size uintptr, sysStat *uint64) unsafe.Pointer {
	addr := bumpAlloc(size)
	if addr == 0 {
		return unsafe.Pointer(uintptr(0))
	}

	regionSize := (size + mem.PageSize - 1) &^ (mem.PageSize - 1)
	mSysStatInc(sysStat, regionSize)
	return unsafe.Pointer(addr)
}

// nanotime returns a monotonically increasing clock value. This is a dummy
// implementation; the weird machine has no timekeeping source of its own.
//
// This function replaces runtime.nanotime and is invoked by the Go allocator
// when a span allocation is performed.
//
//go:redirect-from runtime.nanotime
//go:nosplit
func nanotime() uint64 {
	// Use a dummy loop to prevent the compiler from inlining this function.
	for i := 0; i < 100; i++ {
	}
	return 1
}

// getRandomData populates the given slice with random data. The runtime
// package normally reads a random stream from /dev/random but since this
// is not available, we use a prng instead.
//
//go:redirect-from runtime.getRandomData
func getRandomData(r []byte) {
	for i := 0; i < len(r); i++ {
		prngSeed = (prngSeed * 58321) + 11113
		r[i] = byte((prngSeed >> 16) & 255)
	}
}

var errHeapExhausted = &kernel.Error{Module: "goruntime", Message: "heap arena exhausted"}

// kfmtPanic is overridden in tests so sysReserve's failure path does not
// actually halt the test binary.
var kfmtPanic = func(err *kernel.Error) { panic(err) }

// Init enables support for various Go runtime features. After a call to init
// the following runtime features become available for use:
//  - heap memory allocation (new, make e.t.c)
//  - map primitives
//  - interfaces
func Init() *kernel.Error {
	mallocInitFn()
	algInitFn()       // setup hash implementation for map keys
	modulesInitFn()   // provides activeModules
	typeLinksInitFn() // uses maps, activeModules
	itabsInitFn()     // uses activeModules

	return nil
}

func init() {
	// Dummy calls so the compiler does not optimize away the functions in
	// this file.
	var (
		reserved bool
		stat     uint64
		zeroPtr  = unsafe.Pointer(uintptr(0))
	)

	sysReserve(zeroPtr, 0, &reserved)
	sysMap(zeroPtr, 0, reserved, &stat)
	sysAlloc(0, &stat)
	getRandomData(nil)
	stat = nanotime()
}
