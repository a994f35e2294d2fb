// Package repl builds a sample movdbz program: a three-phase
// read/send/receive loop that drives kernel/io's bridge entirely
// through page-fault cascades.
package repl

import (
	"pfwm/kernel/io"
	"pfwm/kernel/wm"
)

// Register allocation shared with the bridge.
const (
	RCmd  = 0
	RData = 1
	RTemp = 2
)

// Instruction labels. Each movdbz instruction is generated in this order,
// so its index (as GenMovdbz assigns them) always equals its label.
const (
	lReadCmd  = 0
	lReadExit = 1
	lSendCmd  = 2
	lSendExit = 3
	lRecvCmd  = 4
	lRecvExit = 5
	lLoop     = 6
)

// Build allocates the REPL's registers and constants and generates its
// seven movdbz instructions on m, returning the io.Targets a kernel/io
// Bridge should resume this program at after servicing each command.
//
// movdbz computes dst = src - 1, so to land command code N in R_CMD, the
// constant backing it must be initialized to N+1.
func Build(m *wm.Machine) io.Targets {
	m.WriteReg(RCmd, 0)
	m.WriteReg(RData, 0)
	m.WriteReg(RTemp, 0)

	cRead := m.AllocConst(uint32(io.CmdReadByte) + 1)
	cSendQ := m.AllocConst(uint32(io.CmdSendQuery) + 1)
	cRecvR := m.AllocConst(uint32(io.CmdRecvResponse) + 1)
	cOne := m.AllocConst(1)

	// L0: r_cmd = READ_BYTE, then exit to the bridge.
	m.GenMovdbz(RCmd, cRead, lReadExit, lReadExit)
	m.GenMovdbz(wm.RegDiscard, wm.RegDiscard, -1, -1)

	// L2: r_cmd = SEND_QUERY, then exit to the bridge.
	m.GenMovdbz(RCmd, cSendQ, lSendExit, lSendExit)
	m.GenMovdbz(wm.RegDiscard, wm.RegDiscard, -1, -1)

	// L4: r_cmd = RECV_RESPONSE, then exit to the bridge.
	m.GenMovdbz(RCmd, cRecvR, lRecvExit, lRecvExit)
	m.GenMovdbz(wm.RegDiscard, wm.RegDiscard, -1, -1)

	// L6: unconditional jump back to L0.
	m.GenMovdbz(RTemp, cOne, lReadCmd, lReadCmd)

	return io.Targets{
		ReadCmd: lReadCmd,
		SendCmd: lSendCmd,
		RecvCmd: lRecvCmd,
		LoopCmd: lLoop,
	}
}
