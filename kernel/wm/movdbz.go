package wm

// GenMovdbz emits one movdbz instruction: dst ← src − 1, branching to
// destNZAsmInst if the pre-decrement value of src was nonzero or to
// destZAsmInst if it was zero. Either target may be -1, meaning "exit to
// the supervisor." It returns the generated instruction's number, which
// destNZAsmInst/destZAsmInst arguments of later GenMovdbz calls can use to
// jump back to it.
//
// Every register and constant a program needs must be allocated (via
// WriteReg/AllocConst) before the first call to GenMovdbz: the first call
// freezes the boundary between the register file and the instruction
// area, and every instruction's frames are placed by a fixed formula
// relative to that boundary so that forward branches can be wired before
// their target exists.
//
// A logical movdbz expands into three micro-steps so that consecutive
// real decrements always land three rotation slots apart, which is what
// keeps the GDT's busy bit clear on every re-entry: two padding steps
// (which decrement the discard register, a harmless no-op) followed by
// the real step, which performs the decrement that matters.
func (m *Machine) GenMovdbz(destReg, srcReg int, destNZAsmInst, destZAsmInst int) int {
	if !m.instsFrozen {
		m.firstInstPage = m.reservedFrames()
		m.instsFrozen = true
	}

	asmIdx := m.numAsmInsts
	base := asmIdx * 3

	realDestNZ := exitStep
	if destNZAsmInst >= 0 {
		realDestNZ = destNZAsmInst * 3
	}
	realDestZ := exitStep
	if destZAsmInst >= 0 {
		realDestZ = destZAsmInst*3 + 1
	}

	dstFrame, _ := m.frameForReg(destReg)
	srcFrame, _ := m.frameForReg(srcReg)

	// Both padding steps always fall through unconditionally to the real
	// step, regardless of which branch is eventually taken; they decrement
	// the discard register while keeping src's frame live at the real
	// step's eventual rotation slot, so the real step's incoming load
	// still finds src's true value three slots later.
	m.writeStep(base, base+2, base+2, m.discardFrame, srcFrame, srcFrame)
	m.writeStep(base+1, base+2, base+2, m.discardFrame, srcFrame, srcFrame)

	// The real step's decrement is realized by hardware: its own rotation
	// slot's tail names dst's frame, so the task switch's automatic ESP-4
	// save on the way out writes src's pre-decrement value minus one
	// straight into dst. Its branch targets are fed the constant-one
	// frame as a dummy source: whichever of destNZAsmInst/destZAsmInst is
	// actually reached is always one of that instruction's own padding
	// steps, which discards its input anyway.
	m.writeStep(base+2, realDestNZ, realDestZ, dstFrame, m.constOneFrame, m.constOneFrame)

	m.numAsmInsts++
	return asmIdx
}
