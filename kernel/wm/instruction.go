package wm

import (
	"pfwm/kernel/cpu"
	"pfwm/kernel/gdt"
	"pfwm/kernel/idt"
	"pfwm/kernel/mem"
)

// framesPerMicroStep is the number of program frames one hardware task
// switch needs: its own page directory, its private page table for the
// instruction virtual range, its TSS head/instruction page, and its IDT
// page. The stack page table and the GDT view are shared by every step
// and live in the Machine's bookkeeping frames instead.
const framesPerMicroStep = 4

const (
	pdOff     = 0
	instPTOff = 1
	instOff   = 2
	idtOff    = 3
)

// Dword offsets of the fields written inside each instruction's TSS-head
// frame. They line up with the standard x86 TSS layout (CR3 at byte 28,
// EIP at byte 32, EFLAGS at byte 36) relocated to page offset 0xFD0,
// chosen so that the virtual address mem.TSSSlotAddr(stepIndex) (itself
// ending in 0xFD0 within its page) lands exactly on this struct when read
// through the instruction's own page table.
const (
	tssHeadCR3Offset    = 1019
	tssHeadEIPOffset    = 1020
	tssHeadEFLAGSOffset = 1021
	// tssHeadDescrOffset is the last two dwords of the page, the same
	// page offset (0xFF8) a rotating slot's descriptor occupies within
	// its GDT page. These dwords sit at the TSS's EAX/ECX offsets, so
	// the CPU loads the fresh descriptor into EAX/ECX on task entry and
	// saves it back out through the GDT page on task exit, rewriting the
	// slot's live descriptor with a not-busy copy on every switch.
	tssHeadDescrOffset = 1022
)

// unmappedEIP is the instruction pointer every generated task starts
// executing at. No generated page directory ever maps its page, so the
// instant the CPU tries to fetch from it, the resulting page fault (or,
// if already mid-fault, double fault) hands control to the IDT task gates
// below. That fault delivery is the entire mechanism by which a "step"
// executes.
const unmappedEIP = uint32(0x0FFEFFFF)

// exitStep is the sentinel step index meaning "return control to the
// supervisor"; the cascade's equivalent of movdbz's target -1.
const exitStep = -1

// gdtSpanPages is the number of 4KiB pages the 16KiB GDT spans.
const gdtSpanPages = mem.Frame(4)

// readEFLAGSFn is swappable so hosted tests can pin the EFLAGS snapshot
// written into generated TSS heads.
var readEFLAGSFn = cpu.ReadEFLAGS

// microStepFrame returns the program frame backing micro-step stepIndex's
// offset-th frame (one of pdOff/instPTOff/instOff/idtOff). Every
// instruction's frames are placed by a fixed formula, never by allocation
// order, so that an earlier instruction can wire a fault target that has
// not been generated yet.
func (m *Machine) microStepFrame(stepIndex, offset int) mem.Frame {
	return mem.Frame(m.firstInstPage + stepIndex*framesPerMicroStep + offset)
}

func (m *Machine) microStepAddr(stepIndex, offset int) uintptr {
	return m.arena.FrameAddress(m.microStepFrame(stepIndex, offset))
}

// selectorForStep returns the rotating GDT selector a task switch into
// stepIndex uses, or the fixed supervisor selector for exitStep.
func selectorForStep(stepIndex int) uint16 {
	if stepIndex == exitStep {
		return mem.SupervisorTSSSelector
	}
	return mem.TSSSlotSelector(stepIndex)
}

// writeCommonPD builds the page-directory skeleton every generated
// address space shares, the per-step ones and the launcher's initial one:
// the shared stack page at mem.StackBase, the supervisor kernel's 4MiB
// identity page, the 4MiB region holding the supervisor PD and TSS (the
// exit task gate reads and writes the supervisor TSS through whichever
// page directory the exiting step was running under, so it must resolve
// everywhere), the program frame pool, the instruction range behind
// instPTAddr, and the shared GDT view.
func (m *Machine) writeCommonPD(pdAddr, instPTAddr uintptr) {
	pd := mem.ZeroTable(pdAddr)
	pd[mem.PDEIndex(mem.StackBase)] = mem.PDEPageTable(m.writeStackPT())
	pd[mem.PDEIndex(mem.KCodeBase)] = mem.PDE4MiB(mem.KCodeBase)
	pd[mem.PDEIndex(mem.SupervisorPD)] = mem.PDE4MiB(mem.SupervisorPD)
	pd[mem.PDEIndex(mem.ProgBase)] = mem.PDE4MiB(mem.ProgBase)
	pd[mem.PDEIndex(mem.InstBase)] = mem.PDEPageTable(instPTAddr)
	pd[mem.PDEIndex(mem.GDTBase)] = mem.PDEPageTable(m.writeGDTPT())
}

// writeStep generates every frame backing micro-step stepIndex: its page
// directory, its private view of the instruction range, its own TSS
// head, and its IDT. pfTarget/dfTarget are the step indices (or exitStep)
// that a page fault or double fault occurring here should land on.
//
// dstFrame is the register frame this step's own decrement is observed
// in: a hardware task switch saves the outgoing task's state (including
// the error-code-decremented ESP) back into whatever the outgoing task's
// own page table maps its TSS tail to, so mapping dstFrame at stepIndex's
// own rotation slot is what turns "the CPU switched tasks" into "dst was
// written." srcForPF/srcForDF are the register frames this step maps at
// pfTarget's/dfTarget's rotation slot tail: the incoming load for a task
// switch is read through the *outgoing* task's page table too (CR3 has
// not yet changed), so it is this step, not the target itself, that
// decides which frame the target reads its ESP from.
func (m *Machine) writeStep(stepIndex, pfTarget, dfTarget int, dstFrame, srcForPF, srcForDF mem.Frame) {
	pdAddr := m.microStepAddr(stepIndex, pdOff)
	instPTAddr := m.microStepAddr(stepIndex, instPTOff)
	instAddr := m.microStepAddr(stepIndex, instOff)
	idtAddr := m.microStepAddr(stepIndex, idtOff)

	m.writeCommonPD(pdAddr, instPTAddr)

	// This step's own view of the instruction range. Each TSS straddles
	// two pages: the head (CR3/EIP/EFLAGS/EAX/ECX) at the slot address
	// itself, and the tail (ESP and the segment selectors) at the
	// immediately following page-table slot.
	//
	// The step's own slot maps the GDT page holding its own descriptor
	// as the head, so the outgoing save of EAX/ECX (still holding the
	// fresh descriptor loaded on entry) lands on that descriptor's two
	// dwords, clearing the busy bit the switch-in set. It maps dstFrame
	// as the tail, so the saved ESP becomes the decremented register
	// value.
	// Each fault target's slot maps that target's own instruction page
	// as the head (pristine CR3/EIP/EFLAGS plus the fresh descriptor the
	// target will carry in EAX/ECX) and the target-appropriate source
	// register frame as the tail.
	instPT := mem.ZeroTable(instPTAddr)
	instPT[mem.PTEIndex(mem.IDTBase)] = mem.PTE4KiB(idtAddr)
	instPT[mem.PTEIndex(mem.TSSSlotAddr(stepIndex))] = mem.PTE4KiB(m.frameAddr(m.gdtPageFor(selectorForStep(stepIndex))))
	instPT[mem.PTEIndex(mem.TSSSlotAddr(stepIndex))+1] = mem.PTE4KiB(m.frameAddr(dstFrame))

	targets := [2]int{pfTarget, dfTarget}
	srcFrames := [2]mem.Frame{srcForPF, srcForDF}
	for i, target := range targets {
		if target == exitStep {
			continue
		}
		instPT[mem.PTEIndex(mem.TSSSlotAddr(target))] = mem.PTE4KiB(m.microStepAddr(target, instOff))
		instPT[mem.PTEIndex(mem.TSSSlotAddr(target))+1] = mem.PTE4KiB(m.frameAddr(srcFrames[i]))
	}

	mem.ZeroTable(idtAddr)
	idt.WriteTo(idtAddr, selectorForStep(pfTarget), selectorForStep(dfTarget))

	inst := mem.ZeroTable(instAddr)
	inst[tssHeadCR3Offset] = uint32(pdAddr)
	inst[tssHeadEIPOffset] = unmappedEIP
	inst[tssHeadEFLAGSOffset] = readEFLAGSFn()

	descr := gdt.Encode(gdt.TypeTSS32, 0, uint32(mem.TSSSlotAddr(stepIndex)), 0x67)
	inst[tssHeadDescrOffset] = descr[0]
	inst[tssHeadDescrOffset+1] = descr[1]
}
