package wm

import (
	"pfwm/kernel"
	"pfwm/kernel/mem"
)

// genReg formats a register frame at physAddr: the ESP field holds value
// shifted left by 2 (the CPU decrements ESP by 4 when it pushes the fault
// error code on the way into this frame's TSS, so storing value<<2 instead
// of value lets ReadReg recover the original integer by shifting back down
// by 2 rather than by 2 plus an off-by-one correction), and the segment
// registers are loaded with the flat code/data selectors every generated
// task runs under.
func genReg(physAddr uintptr, value uint32) {
	p := kernel.Uint32View(physAddr, mem.EntriesPerTable)
	for i := range p {
		p[i] = 0
	}

	p[2] = value << 2 // ESP
	p[6] = 0x10        // ES
	p[7] = 0x08        // CS
	p[8] = 0x10        // SS
	p[9] = 0x10        // DS
	p[10] = 0x10       // FS
	p[11] = 0x10       // GS
	p[12] = 0          // LDT
}

// readReg reads back the value last written to the register frame at
// physAddr.
func readReg(physAddr uintptr) uint32 {
	p := kernel.Uint32View(physAddr, mem.EntriesPerTable)
	return p[2] >> 2
}

// WriteReg sets register reg to value, allocating a fresh program frame
// for it the first time it is seen. Register numbers must be assigned
// densely starting at 0; RegDiscard and RegConstOne are reserved and
// cannot be passed here.
func (m *Machine) WriteReg(reg int, value uint32) {
	f, ok := m.regFrame[reg]
	if !ok {
		f = m.arena.AllocFrame()
		m.regFrame[reg] = f
		if reg+1 > m.numUserRegs {
			m.numUserRegs = reg + 1
		}
	}

	genReg(m.frameAddr(f), value)
}

// ReadReg returns the value currently held by register reg, or 0 for any
// register number that has never been written (including an out-of-range
// one): a program that reads a register before writing it, or passes a
// bogus index, observes the same zero movdbz's own register file would
// read back for an unallocated slot.
func (m *Machine) ReadReg(reg int) uint32 {
	f, ok := m.frameForReg(reg)
	if !ok {
		return 0
	}
	return readReg(m.frameAddr(f))
}

// AllocConst allocates a brand new register, initialized to value, and
// returns its register number. Constants occupy register numbers above
// every user register a program has written so far, mirroring movdbz's
// convention that temporaries live past the registers a program names
// explicitly.
func (m *Machine) AllocConst(value uint32) int {
	reg := m.numUserRegs + m.numConstRegs
	f := m.arena.AllocFrame()
	m.regFrame[reg] = f
	m.numConstRegs++

	genReg(m.frameAddr(f), value)
	return reg
}
