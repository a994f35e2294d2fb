// Package serial drives the COM1 16550 UART: the weird machine's primary
// wire to the outside world, carrying the "READY"/"Q:"/"A:"/"Claude: "
// session framing. Port access goes through swappable function variables
// so the UART can be faked in tests.
package serial

import "pfwm/kernel/cpu"

// COM1 is the fixed I/O base port this kernel always talks to; the
// hardware here is fixed by the emulator target, not probed.
const COM1 = uint16(0x3F8)

const (
	portData       = COM1 + 0
	portIntEnable  = COM1 + 1
	portDivisorLo  = COM1 + 0
	portFIFOCtl    = COM1 + 2
	portLineCtl    = COM1 + 3
	portModemCtl   = COM1 + 4
	portLineStatus = COM1 + 5
)

const (
	lineStatusDataReady     = uint8(1 << 0)
	lineStatusTransmitEmpty = uint8(1 << 5)
)

// outbFn/inbFn are swappable so tests can fake the UART's port I/O.
var (
	outbFn = cpu.Outb
	inbFn  = cpu.Inb
)

// Init programs the UART for 115200 baud, 8N1, FIFO enabled.
func Init() {
	outbFn(portIntEnable, 0x00) // disable all interrupts
	outbFn(portLineCtl, 0x80)   // enable DLAB
	outbFn(portDivisorLo, 0x01) // divisor 1 = 115200 baud
	outbFn(portIntEnable, 0x00)
	outbFn(portLineCtl, 0x03)  // 8N1
	outbFn(portFIFOCtl, 0xC7)  // enable FIFO, clear, 14-byte threshold
	outbFn(portModemCtl, 0x0B) // IRQs enabled, RTS/DTR set
}

// Received reports whether a byte is waiting in the receive buffer.
func Received() bool {
	return inbFn(portLineStatus)&lineStatusDataReady != 0
}

// ReadByte blocks until a byte is available and returns it.
func ReadByte() byte {
	for !Received() {
	}
	return inbFn(portData)
}

// transmitEmpty reports whether the transmit holding register can accept a
// byte.
func transmitEmpty() bool {
	return inbFn(portLineStatus)&lineStatusTransmitEmpty != 0
}

// WriteByte blocks until the transmit buffer has room, then sends c.
func WriteByte(c byte) {
	for !transmitEmpty() {
	}
	outbFn(portData, c)
}

// WriteString sends every byte of s in order.
func WriteString(s string) {
	for i := 0; i < len(s); i++ {
		WriteByte(s[i])
	}
}
