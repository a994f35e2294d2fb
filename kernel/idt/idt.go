// Package idt builds the interrupt descriptor table pages the weird
// machine's fault cascade runs on. Unlike a conventional kernel's IDT,
// every live entry here is a task gate rather than an interrupt or trap
// gate: the whole point of the page-fault weird machine is that handling
// the fault IS a hardware task switch, not a call into handler code.
package idt

import "pfwm/kernel"

// InterruptNumber identifies an IDT slot.
type InterruptNumber uint8

const (
	// DoubleFault is raised when a second fault occurs while the CPU is
	// already delivering one, which the cascade arranges to happen
	// exactly when a step's decremented value hits zero. Its task gate
	// is the branch-if-zero destination.
	DoubleFault = InterruptNumber(8)

	// PageFault is raised when a generated instruction's deliberately
	// unmapped EIP is fetched. Its task gate is the branch-not-zero
	// destination.
	PageFault = InterruptNumber(14)
)

// NumEntries is the number of 8-byte gate slots the live IDT exposes: one
// per x86 interrupt vector (0-255), giving an IDTR limit of 0x7FF
// (256*8-1) even though the weird machine only ever populates two of
// them.
const NumEntries = 256

// gateTaskPresent is the access-byte pattern for a present, DPL-3 32-bit
// task gate: type 0x5 (task gate) with the present bit and both DPL bits
// set.
const gateTaskPresent = uint16(0xe500)

// Gate is a single raw 8-byte IDT descriptor, expressed as its two
// constituent dwords.
type Gate [2]uint32

// TaskGate builds a task gate descriptor that switches into the TSS named
// by selector whenever its vector fires. The offset and segment-selector
// fields an interrupt/trap gate would otherwise use are unused by a task
// gate; only the TSS selector (the high word of the first dword) and the
// present/type bits matter.
func TaskGate(selector uint16) Gate {
	var g Gate
	g[0] = uint32(selector) << 16
	g[1] = uint32(gateTaskPresent)
	return g
}

// WriteTo zeroes one IDT page's worth of gates at physAddr and writes
// DoubleFault and PageFault directly into it as task gates to
// dfSelector/pfSelector; every other slot is left absent (zeroed).
//
// WriteTo writes straight into the destination memory rather than building
// an intermediate []Gate table, so kernel/wm generates its per-micro-step
// IDT pages without any heap allocation.
func WriteTo(physAddr uintptr, pfSelector, dfSelector uint16) {
	dst := kernel.Uint32View(physAddr, NumEntries*2)
	for i := range dst {
		dst[i] = 0
	}

	writeGate(dst, PageFault, TaskGate(pfSelector))
	writeGate(dst, DoubleFault, TaskGate(dfSelector))
}

// writeGate writes g into dst (a dword view of an IDT page) at the slot
// named by vector.
func writeGate(dst []uint32, vector InterruptNumber, g Gate) {
	dst[int(vector)*2] = g[0]
	dst[int(vector)*2+1] = g[1]
}
