// Package io implements the weird machine's external collaborator
// protocol: each time the cascade exits, the bridge reads R_CMD and
// services a read/send/receive request through the serial, keyboard
// and VGA driver packages before resuming the cascade at a step the
// running program chose.
package io

import (
	"pfwm/kernel/driver/kbd"
	"pfwm/kernel/driver/serial"
	"pfwm/kernel/driver/vga"
	"pfwm/kernel/kfmt"
)

// Command codes read from R_CMD.
const (
	CmdExit         = 0
	CmdReadByte     = 1
	CmdWriteByte    = 2
	CmdSendQuery    = 3
	CmdRecvResponse = 4
)

// RCmd is the fixed register index every program's command word lives in.
const RCmd = 0

// RData is the fixed register index CmdWriteByte reads its byte from.
const RData = 1

// maxPromptLen bounds the accumulated-line buffer.
const maxPromptLen = 1024

// Machine is the subset of *wm.Machine the bridge needs: reading/writing
// registers and resuming the cascade at a chosen logical instruction. It
// is declared here rather than imported from kernel/wm so that kernel/io
// has no dependency on the weird machine's internals, only its observable
// register/resume contract.
type Machine interface {
	ReadReg(reg int) uint32
	WriteReg(reg int, value uint32)
	Resume(asmInst int)
}

// Targets names the logical instruction indices the bridge resumes the
// cascade at after servicing each command. Only the program that built the
// cascade (package repl) knows its own instruction layout, so the bridge
// takes these as configuration rather than assuming any particular REPL.
type Targets struct {
	// ReadCmd is resumed after a non-terminating byte is accumulated, a
	// backspace is processed, or an empty line is submitted.
	ReadCmd int
	// SendCmd is resumed once a non-empty line has been terminated.
	SendCmd int
	// RecvCmd is resumed once CmdSendQuery has transmitted the query.
	RecvCmd int
	// LoopCmd is resumed once a response has been fully relayed.
	LoopCmd int
}

// Bridge drives the I/O bridge loop for one Machine.
type Bridge struct {
	m       Machine
	targets Targets
	con     *vga.Console

	buf        []byte
	needPrompt bool
}

// NewBridge creates a Bridge dispatching cmd into the given resume targets
// and echoing to con.
func NewBridge(m Machine, targets Targets, con *vga.Console) *Bridge {
	return &Bridge{m: m, targets: targets, con: con, needPrompt: true}
}

// swappable I/O seams, the same pattern kernel/driver/serial and
// kernel/driver/kbd use for port access: real hardware calls by default,
// faked out in tests.
var (
	serialWriteByteFn   = serial.WriteByte
	serialWriteStringFn = serial.WriteString
	serialReadByteFn    = serial.ReadByte
	serialReceivedFn    = serial.Received
	kbdHasKeyFn         = kbd.HasKey
	kbdReadKeyFn        = kbd.ReadKey
)

// readInputByte polls the keyboard, then serial, returning whichever has a
// byte first.
func readInputByte() byte {
	for {
		if kbdHasKeyFn() {
			if c, ok := kbdReadKeyFn(); ok {
				return c
			}
			continue
		}
		if serialReceivedFn() {
			return serialReadByteFn()
		}
	}
}

// Run launches the cascade and services its I/O requests until the program
// exits (CmdExit, an unrecognized command, or the "quit" sentinel line).
func (b *Bridge) Run() {
	serialWriteStringFn("READY\n")

	b.con.SetColor(vga.DarkGrey, vga.Black)
	b.con.WriteString("[weird machine: launching fault cascade]\n")

	b.m.Resume(0)

	for {
		switch b.m.ReadReg(RCmd) {
		case CmdReadByte:
			if !b.handleReadByte() {
				return
			}
		case CmdWriteByte:
			serialWriteByteFn(byte(b.m.ReadReg(RData)))
			b.m.WriteReg(RCmd, 0)
			b.m.Resume(b.targets.ReadCmd)
		case CmdSendQuery:
			b.handleSendQuery()
		case CmdRecvResponse:
			b.handleRecvResponse()
		default:
			b.con.SetColor(vga.Yellow, vga.Black)
			b.con.WriteString("[weird machine exited]\n")
			return
		}
	}
}

func (b *Bridge) handleReadByte() bool {
	if b.needPrompt {
		b.con.SetColor(vga.LightGreen, vga.Black)
		b.con.WriteString("pagefault> ")
		b.needPrompt = false
	}

	c := readInputByte()

	switch {
	case c == '\n' || c == '\r':
		serialWriteByteFn('\n')
		kfmt.Fprintf(b.con, "%c", byte('\n'))

		if len(b.buf) == 4 && string(b.buf) == "quit" {
			b.con.SetColor(vga.Yellow, vga.Black)
			b.con.WriteString("[quit]\n")
			serialWriteStringFn("BYE\n")
			return false
		}

		b.needPrompt = true
		b.m.WriteReg(RCmd, 0)
		if len(b.buf) == 0 {
			b.m.Resume(b.targets.ReadCmd)
		} else {
			b.m.Resume(b.targets.SendCmd)
		}

	case c == '\b' || c == 0x7f:
		if len(b.buf) > 0 {
			b.buf = b.buf[:len(b.buf)-1]
			serialWriteByteFn('\b')
			serialWriteByteFn(' ')
			serialWriteByteFn('\b')
			kfmt.Fprintf(b.con, "%c", byte('\b'))
		}
		b.m.WriteReg(RCmd, 0)
		b.m.Resume(b.targets.ReadCmd)

	default:
		if len(b.buf) < maxPromptLen {
			b.buf = append(b.buf, c)
		}
		serialWriteByteFn(c)
		b.con.SetColor(vga.White, vga.Black)
		kfmt.Fprintf(b.con, "%c", c)
		b.m.WriteReg(RCmd, 0)
		b.m.Resume(b.targets.ReadCmd)
	}
	return true
}

func (b *Bridge) handleSendQuery() {
	b.con.SetColor(vga.DarkGrey, vga.Black)
	b.con.WriteString("[sending query via fault cascade]\n")

	serialWriteStringFn("Q:")
	for _, c := range b.buf {
		serialWriteByteFn(c)
	}
	serialWriteByteFn('\n')

	b.buf = b.buf[:0]

	b.m.WriteReg(RCmd, 0)
	b.m.Resume(b.targets.RecvCmd)
}

func (b *Bridge) handleRecvResponse() {
	serialReadByteFn() // 'A'
	serialReadByteFn() // ':'

	b.con.SetColor(vga.LightCyan, vga.Black)
	b.con.WriteString("Claude: ")
	serialWriteStringFn("Claude: ")

	for {
		c := serialReadByteFn()
		if c == 0x04 {
			break
		}
		kfmt.Fprintf(b.con, "%c", c)
		serialWriteByteFn(c)
	}
	kfmt.Fprintf(b.con, "%c", byte('\n'))
	kfmt.Fprintf(b.con, "%c", byte('\n'))
	serialWriteByteFn('\n')

	b.m.WriteReg(RCmd, 0)
	b.m.Resume(b.targets.LoopCmd)
}
