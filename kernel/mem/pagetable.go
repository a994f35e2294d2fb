package mem

import "pfwm/kernel"

// Page directory/table entry flags (standard x86 encoding).
const (
	flagPresent = uint32(1 << 0)
	flagRW      = uint32(1 << 1)
	flagPS      = uint32(1 << 7) // page size: 1 = 4MiB page (PDE only)
)

// EntriesPerTable is the number of 4-byte entries in one x86 page
// directory or page table: a 4KiB page holds 1024 dwords.
const EntriesPerTable = 1024

// PDE4MiB builds a page-directory entry that maps a 4MiB PSE page at
// physAddr. Every supervisor and per-instruction page directory in this
// kernel uses only 4MiB pages for its identity-mapped regions; the only
// 4KiB page tables are the ones behind the stack, instruction and GDT
// ranges of the generated page directories.
func PDE4MiB(physAddr uintptr) uint32 {
	return uint32(physAddr) | flagPresent | flagRW | flagPS
}

// PDEPageTable builds a page-directory entry that points at a 4KiB page
// table located at physAddr.
func PDEPageTable(physAddr uintptr) uint32 {
	return uint32(physAddr) | flagPresent | flagRW
}

// PTE4KiB builds a page-table entry that maps a single 4KiB page at
// physAddr.
func PTE4KiB(physAddr uintptr) uint32 {
	return uint32(physAddr) | flagPresent | flagRW
}

// ZeroTable zeroes a 4KiB, 1024-entry page directory or page table located
// at physAddr and returns a dword view of it. The clear runs a dword at a
// time through the same view callers then write their entries through:
// nothing in this kernel ever addresses a table as raw bytes, so there is
// no byte-granular memset to share.
func ZeroTable(physAddr uintptr) []uint32 {
	table := kernel.Uint32View(physAddr, EntriesPerTable)
	for i := range table {
		table[i] = 0
	}
	return table
}

// PDEIndex and PTEIndex split a virtual address into its page-directory
// and page-table indices.
func PDEIndex(virtAddr uintptr) int { return int(virtAddr>>22) & 0x3ff }
func PTEIndex(virtAddr uintptr) int { return int(virtAddr>>12) & 0x3ff }
