package wm

import (
	"pfwm/kernel/cpu"
	"pfwm/kernel/mem"
)

// framesForInit is the number of program frames the Machine's shared
// bookkeeping needs: the stack page and its page table, the GDT page
// table and the four-page GDT copy behind it, the launcher's initial page
// directory, and its instruction-range page table. The initial address
// space has no TSS head or IDT frame of its own; it is never a
// task-switch target, only ever the currently active address space for
// the one far jump that starts (or resumes) the cascade. Both the
// outgoing save of supervisor state and the incoming load of the resumed
// instruction's state happen through this address space, since a task
// switch reads and writes its TSSes through whichever CR3 was active
// before the switch completes.
const framesForInit = 9

// Launch starts the cascade at the first generated instruction. It is
// equivalent to Resume(0).
func (m *Machine) Launch() {
	m.Resume(0)
}

// Resume starts the cascade at the NOP0 micro-step of asmInst, the
// instruction index GenMovdbz returned. Control returns to the caller once
// the cascade reaches an exit task gate (a fault target of -1 passed to
// some earlier GenMovdbz call).
func (m *Machine) Resume(asmInst int) {
	m.lastResume = asmInst
	startStep := asmInst * 3

	// Rewrite the constant-one and discard frames: every padding step's
	// outgoing save overwrites the discard frame, so a re-entry must not
	// inherit a previous run's leftovers.
	genReg(m.frameAddr(m.constOneFrame), 1)
	genReg(m.frameAddr(m.discardFrame), 0)

	// Rewriting the GDT copy also clears the busy bit a previous run's
	// exit path left set on the supervisor TSS descriptor.
	m.writeGDT()

	pdAddr := m.frameAddr(m.initPDFrame)
	instPTAddr := m.frameAddr(m.initInstPTFrame)
	m.writeCommonPD(pdAddr, instPTAddr)

	// cpu.LongJump1FF8 always targets GDT selector 0x1FF8, the first of
	// the three rotating TSS slots, so startStep must land there. That
	// holds for every asmInst*3 NOP0 step, since the rotation period is 3. The
	// head maps the resumed step's instruction page; the tail maps the
	// constant-one register as a dummy source, the same value every
	// padding step reads and discards.
	instPT := mem.ZeroTable(instPTAddr)
	instPT[mem.PTEIndex(mem.IDTBase)] = mem.PTE4KiB(m.microStepAddr(startStep, idtOff))
	instPT[mem.PTEIndex(mem.TSSSlotAddr(0))] = mem.PTE4KiB(m.microStepAddr(startStep, instOff))
	instPT[mem.PTEIndex(mem.TSSSlotAddr(0))+1] = mem.PTE4KiB(m.frameAddr(m.constOneFrame))

	cpu.WriteCR3(uint32(pdAddr))
	cpu.LongJump1FF8()
	cpu.WriteCR3(uint32(mem.SupervisorPD))
}
