// Package gdt builds the global descriptor table the page-fault weird
// machine runs under: the flat code/data segments every task uses, the
// supervisor's own TSS descriptor, and the three rotating TSS descriptors
// that the fault cascade task-switches through.
package gdt

import "pfwm/kernel"

// Entry is a single raw 8-byte GDT descriptor, expressed as its two
// constituent dwords.
type Entry [2]uint32

// Descriptor type bytes, as loaded into the access-byte field of a segment
// descriptor.
const (
	TypeCode32 = uint8(0x9A) // present, ring 0, executable, readable
	TypeData32 = uint8(0x92) // present, ring 0, writable
	TypeTSS32  = uint8(0x89) // present, ring 0, 32-bit TSS (available)
)

// Fixed selectors every generated program relies on.
const (
	NullSelector       = uint16(0x00)
	CodeSelector       = uint16(0x08)
	DataSelector       = uint16(0x10)
	SupervisorSelector = uint16(0x18)
)

// NumEntries is the number of descriptor slots reserved in the live GDT:
// enough for the four fixed entries plus the highest rotating TSS slot
// (selector 0x3FF8, descriptor index 0x3FF8>>3 = 2047): a full 16KiB,
// four-page table.
const NumEntries = 2048

// Encode builds a raw segment descriptor for a segment of the given type
// starting at base and extending for limit units (either bytes or 4KiB
// pages, depending on granularity). granularity is 1 for page-granular
// limits (used by the flat code/data segments) and 0 for byte-granular
// limits (used by every TSS descriptor, whose limit is always 0x67: the
// 104-byte, 26-dword x86 TSS structure minus one, since a limit names the
// last valid byte offset).
func Encode(descrType uint8, granularity uint8, base, limit uint32) Entry {
	var e Entry
	e[0] = ((base & 0xffff) << 16) | (limit & 0xffff)
	e[1] = (base & 0xff000000) |
		0x00400000 |
		(uint32(granularity) << 23) |
		(limit & 0x000f0000) |
		(uint32(descrType) << 8) |
		((base & 0x00ff0000) >> 16)
	return e
}

// WriteTo zeroes the NumEntries-descriptor table at physAddr and writes the
// fixed descriptors directly into it: the null descriptor, a flat 4GiB code
// segment, a flat 4GiB data segment, and the supervisor's own TSS
// descriptor pointing at supervisorTSSAddr. Every slot beyond the fixed
// ones is left zeroed until a call to SetTSSSlot fills it in.
//
// WriteTo writes straight into the destination memory rather than building
// an intermediate []Entry table: init_gdt does the same, and this package
// runs before kernel/goruntime.Init, when make() and other heap allocation
// are not yet available.
func WriteTo(physAddr uintptr, supervisorTSSAddr uint32) {
	dst := kernel.Uint32View(physAddr, NumEntries*2)
	for i := range dst {
		dst[i] = 0
	}

	writeEntry(dst, CodeSelector, Encode(TypeCode32, 1, 0, 0xfffff))
	writeEntry(dst, DataSelector, Encode(TypeData32, 1, 0, 0xfffff))
	writeEntry(dst, SupervisorSelector, Encode(TypeTSS32, 0, supervisorTSSAddr, 0x67))
}

// SetTSSSlot writes a fresh, not-busy TSS descriptor for selector directly
// into the table at physAddr, pointing at tssAddr. kernel/supervisor calls
// it on the live GDT during setup, and kernel/wm on its program GDT copy
// before every entry into the cascade. While the cascade runs, the busy
// bit is cleared by the fresh descriptor copy every generated instruction
// page carries (see kernel/wm's writeStep), not by this function.
func SetTSSSlot(physAddr uintptr, selector uint16, tssAddr uint32) {
	dst := kernel.Uint32View(physAddr, NumEntries*2)
	writeEntry(dst, selector, Encode(TypeTSS32, 0, tssAddr, 0x67))
}

// writeEntry writes e into dst (a dword view of a descriptor table) at the
// slot named by selector.
func writeEntry(dst []uint32, selector uint16, e Entry) {
	idx := int(selector >> 3)
	dst[idx*2] = e[0]
	dst[idx*2+1] = e[1]
}
