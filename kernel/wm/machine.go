// Package wm generates and launches page-fault weird machine programs: the
// movdbz instruction cascade is built entirely out of hardware task-switch
// descriptors and deliberately unmapped instruction pointers, never out of
// actual executable code. See the package's instruction.go and launch.go
// for the mechanics; machine.go and register.go hold the program's state.
package wm

import (
	"pfwm/kernel/gdt"
	"pfwm/kernel/mem"
)

// Sentinel register numbers. These never occupy a slot in the register
// file; ReadReg and GenMovdbz resolve them to two program frames set up
// in New and rewritten on every Resume.
const (
	RegDiscard  = -2
	RegConstOne = -3
)

// MaxRegisters is the number of user-visible registers (including
// compile-time allocated constants) the program frame pool is sized for.
// WriteReg and AllocConst do not check this bound.
const MaxRegisters = 64

// MaxAsmInsts is the number of movdbz instructions the program frame pool
// is sized for. Each logical instruction expands into 3 real micro-steps,
// so the pool holds MaxAsmInsts*3 micro-steps' frames on top of the
// register and bookkeeping frames. GenMovdbz does not check this bound.
const MaxAsmInsts = 256

// framesPerArena is generous enough for the launcher's own bootstrap
// frames, MaxRegisters register frames, the discard/const-one frames, and
// MaxAsmInsts*3 micro-steps.
const framesPerArena = framesForInit + 2 + MaxRegisters + MaxAsmInsts*3*framesPerMicroStep

// Machine holds everything needed to generate and launch a page-fault
// weird machine program: the pool of identity-mapped program frames every
// generated page is carved from, the register file, and the running
// instruction count.
type Machine struct {
	arena *mem.Arena

	// stackFrame/stackPTFrame back the single shared stack page every
	// generated page directory maps at PDE[0] (mem.StackBase): the
	// hardware task switch that realizes dst = src - 1 loads ESP from the
	// source register frame and then has the CPU itself push the fault's
	// error code at that address, so PDE[0] must resolve to a writable
	// page in every page directory the cascade ever runs under, not just
	// the supervisor's.
	stackFrame   mem.Frame
	stackPTFrame mem.Frame

	// gdtPTFrame/gdtFrame back the GDT view shared by every generated
	// page directory: gdtFrame is the first of four contiguous frames
	// holding the program's own copy of the GDT (the copy the weird
	// machine sees through mem.GDTBase, distinct from the live table
	// GDTR was loaded with), and gdtPTFrame is the one page table that
	// maps it there.
	gdtPTFrame mem.Frame
	gdtFrame   mem.Frame

	initPDFrame     mem.Frame
	initInstPTFrame mem.Frame

	discardFrame  mem.Frame
	constOneFrame mem.Frame
	regFrame      map[int]mem.Frame
	numUserRegs   int
	numConstRegs  int

	numAsmInsts   int
	firstInstPage int
	instsFrozen   bool

	// lastResume records the asmInst argument of the most recent call to
	// Resume (Launch counts as Resume(0)), so a panic mid-cascade can
	// report which instruction the weird machine was last sent into; see
	// kfmt.SetPanicContext.
	lastResume int
}

// LastResume returns the asmInst argument of the most recent Launch/Resume
// call, or 0 if the cascade has never been entered.
func (m *Machine) LastResume() int {
	return m.lastResume
}

// New creates a Machine whose program frames are carved sequentially out of
// the identity-mapped pool starting at mem.ProgBase, and reserves the
// discard and constant-one register frames every generated instruction
// relies on.
func New() *Machine {
	return NewAt(mem.ProgBase)
}

// NewAt is New with an explicit arena base address, so tests can back a
// Machine with a plain Go buffer instead of the real identity-mapped
// program region.
func NewAt(base uintptr) *Machine {
	m := &Machine{
		arena:    mem.NewArena(base, framesPerArena),
		regFrame: make(map[int]mem.Frame),
	}

	m.stackFrame = m.arena.AllocFrame()
	m.stackPTFrame = m.arena.AllocFrame()
	m.gdtPTFrame = m.arena.AllocFrame()
	m.gdtFrame = m.arena.AllocFrames(gdtSpanPages)

	m.initPDFrame = m.arena.AllocFrame()
	m.initInstPTFrame = m.arena.AllocFrame()

	m.constOneFrame = m.arena.AllocFrame()
	m.discardFrame = m.arena.AllocFrame()
	genReg(m.frameAddr(m.constOneFrame), 1)
	genReg(m.frameAddr(m.discardFrame), 0)

	return m
}

// frameAddr returns the physical (== virtual, since the program pool is
// identity-mapped) address backing frame f.
func (m *Machine) frameAddr(f mem.Frame) uintptr {
	return m.arena.FrameAddress(f)
}

// frameForReg resolves a register number (including the RegDiscard and
// RegConstOne sentinels) to its backing program frame. ok is false for any
// register number that has never been allocated (including out-of-range
// ones), so callers can distinguish "reads as zero" from "aliases frame
// 0"; frame 0 is a real, meaningful frame (m.stackFrame), not a sentinel
// for "nothing here".
func (m *Machine) frameForReg(reg int) (_ mem.Frame, ok bool) {
	switch reg {
	case RegDiscard:
		return m.discardFrame, true
	case RegConstOne:
		return m.constOneFrame, true
	default:
		f, ok := m.regFrame[reg]
		return f, ok
	}
}

// writeStackPT (re-)writes the single page table shared by every
// generated page directory's PDE[0] and returns its physical address.
// Rewriting it on every call is cheap and keeps each page directory's
// PDE[0] self-contained instead of depending on NewAt having run first in
// some particular order.
func (m *Machine) writeStackPT() uintptr {
	stackPTAddr := m.frameAddr(m.stackPTFrame)
	stackPT := mem.ZeroTable(stackPTAddr)
	stackPT[mem.PTEIndex(mem.StackBase)] = mem.PTE4KiB(m.frameAddr(m.stackFrame))
	return stackPTAddr
}

// writeGDTPT (re-)writes the single page table shared by every generated
// page directory's GDT PDE and returns its physical address. Its four
// entries map mem.GDTBase onto the program's own GDT copy, so that every
// descriptor the CPU dereferences while the cascade runs, and every
// busy-bit write it performs, lands in the copy, never in the live table
// GDTR was originally loaded from.
func (m *Machine) writeGDTPT() uintptr {
	gdtPTAddr := m.frameAddr(m.gdtPTFrame)
	gdtPT := mem.ZeroTable(gdtPTAddr)
	for page := mem.Frame(0); page < gdtSpanPages; page++ {
		gdtPT[page] = mem.PTE4KiB(m.frameAddr(m.gdtFrame + page))
	}
	return gdtPTAddr
}

// writeGDT (re-)writes the program's GDT copy with the same descriptors
// the live table carries: the flat code/data segments, the supervisor
// TSS, and the three rotating task-switch slots. Resume calls this before
// every entry into the cascade, which is also what clears any busy bits a
// previous run's exit path left set in the copy.
func (m *Machine) writeGDT() {
	gdtAddr := m.frameAddr(m.gdtFrame)
	gdt.WriteTo(gdtAddr, uint32(mem.SupervisorTSSAddr))
	for i := 0; i < 3; i++ {
		gdt.SetTSSSlot(gdtAddr, mem.TSSSlotSelector(i), uint32(mem.TSSSlotAddr(i)))
	}
}

// gdtPageFor returns the frame of the GDT-copy page holding the
// descriptor for selector.
func (m *Machine) gdtPageFor(selector uint16) mem.Frame {
	return m.gdtFrame + mem.Frame(selector>>12)
}

// reservedFrames is the number of program frames consumed by bookkeeping
// (discard/const-one) and the register file before any instruction frame
// is allocated. GenMovdbz freezes firstInstPage at this value plus the
// register count the first time it runs, which is why every register and
// constant a program needs must be allocated before its first call to
// GenMovdbz.
func (m *Machine) reservedFrames() int {
	return framesForInit + 2 + m.numUserRegs + m.numConstRegs
}
