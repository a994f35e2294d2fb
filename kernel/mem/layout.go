package mem

// The weird machine's entire address space is a handful of fixed physical
// addresses, each the base of a 4MiB PSE page-directory entry. Nothing here
// is discovered at boot; every value below is wired into the page
// directories that kernel/wm and kernel/gdt generate.
const (
	// StackBase is PDE 0: the supervisor's own stack lives here, identity
	// mapped the same as every other region.
	StackBase = uintptr(0x00000000)

	// InstBase is PDE 1: the virtual range where every generated
	// instruction's rotating TSS slots appear, with the IDT mapped at
	// the base address itself. Which physical frames back this range
	// changes per instruction; the frames themselves live in the
	// ProgBase pool.
	InstBase = uintptr(0x00400000)

	// IDTBase aliases InstBase: the IDT lives in the same PDE as the
	// instruction pages since both are addressed relative to a single
	// instruction's page table.
	IDTBase = InstBase

	// KCodeBase is PDE 3: the 4MiB identity page backing the resident Go
	// kernel binary. The Go runtime's heap lives separately, at HeapBase.
	KCodeBase = uintptr(0x00C00000)

	// GDTBase is PDE 6: the live GDT, a full 16KiB (4 page) table so the
	// three rotating TSS descriptors and the fixed entries all fit.
	GDTBase = uintptr(0x01800000)

	// GDTSize is the GDTR limit of the live GDT (its byte size minus one),
	// passed to cpu.LoadGDT.
	GDTSize = uint16(4*4096 - 1)

	// SupervisorPD is the physical address of the page directory the
	// supervisor (the ordinary, non-weird-machine Go kernel) runs under
	// before a launch and returns to after every exit.
	SupervisorPD = uintptr(0x07C00000)

	// SupervisorTSSAddr is the physical address of the supervisor's own
	// TSS, backing GDT selector 0x18. It sits in the same 4MiB region as
	// SupervisorPD, which every generated page directory identity-maps:
	// the launch far jump saves supervisor state into it, and the exit
	// task gate reloads that state (plus the statically initialized CR3
	// field) from it, both through whichever page directory the cascade
	// was running under at the time.
	SupervisorTSSAddr = SupervisorPD + PageSize

	// ProgBase is the start of the identity-mapped pool of program
	// frames: every frame a generated program consumes (its own copies
	// of page directories, page tables, instruction pages, IDT pages and
	// register frames) is carved sequentially out of this pool.
	ProgBase = uintptr(0x08000000)
)

// HeapBase and HeapSize bound the region the Go runtime allocator is
// bootstrapped over. Because the supervisor's entire address space up to
// 2GiB is identity-mapped with PSE pages (by kernel/supervisor.Setup)
// before goruntime.Init runs,
// there is no page table to edit here the way a demand-paged kernel would:
// the region is already present, writable and contiguous, so
// kernel/goruntime only needs to bump a pointer through it. The range sits
// between the kernel's own identity page and the live GDT so it can never
// collide with either.
const (
	HeapBase = uintptr(0x01000000)
	HeapSize = uintptr(8 << 20) // 8MiB, ending exactly at GDTBase
)

// TSSSlot selectors. Every logical instruction lands in one of three
// GDT slots, chosen by (micro-step index mod 3); using only three slots and
// always writing a fresh, non-busy descriptor before switching into one is
// what lets the cascade re-enter the same hardware TSS infinitely without
// ever tripping the CPU's busy-bit #GP fault.
const (
	// TSSSlotSelectors are the three rotating TSS descriptor selectors
	// in the live GDT, indexed by (step index mod 3).
	TSSSlot0Selector = uint16(0x1FF8)
	TSSSlot1Selector = uint16(0x2FF8)
	TSSSlot2Selector = uint16(0x3FF8)

	// SupervisorTSSSelector names the one fixed TSS the supervisor
	// itself runs under; every cascade's exit task gate points back at
	// it.
	SupervisorTSSSelector = uint16(0x18)

	// CodeSelector and DataSelector are the flat code/data descriptors
	// every generated register frame's segment registers are loaded
	// with.
	CodeSelector = uint16(0x08)
	DataSelector = uint16(0x10)
)

// TSSSlotSelector returns the rotating GDT selector for micro-step index i.
func TSSSlotSelector(i int) uint16 {
	switch i % 3 {
	case 0:
		return TSSSlot0Selector
	case 1:
		return TSSSlot1Selector
	default:
		return TSSSlot2Selector
	}
}

// TSSSlotAddr returns the virtual address of the TSS used by micro-step
// index i. The TSS head (CR3/EIP/EFLAGS/EAX/ECX) lies in the page holding
// this address and its tail (ESP and the segment selectors) in the page
// after it. The three slots are spaced 0x10000 apart inside the
// instruction range so that three consecutive steps never collide.
func TSSSlotAddr(i int) uintptr {
	switch i % 3 {
	case 0:
		return InstBase + 0x0FFD0
	case 1:
		return InstBase + 0x1FFD0
	default:
		return InstBase + 0x2FFD0
	}
}
