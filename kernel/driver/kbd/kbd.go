// Package kbd decodes a PS/2 keyboard in scan code set 1, tracking shift
// state and dropping break codes, with swappable port-access function
// variables so the hardware can be faked in tests.
package kbd

import "pfwm/kernel/cpu"

const (
	dataPort   = uint16(0x60)
	statusPort = uint16(0x64)
)

const statusOutputFull = uint8(1 << 0)

const (
	scLeftShiftPress    = 0x2A
	scRightShiftPress   = 0x36
	scLeftShiftRelease  = 0xAA
	scRightShiftRelease = 0xB6
)

// unshifted and shifted map scan codes 0x00-0x39 to ASCII. A zero entry
// means the key has no printable representation.
var unshifted = [58]byte{
	0, 0, '1', '2', '3', '4', '5', '6',
	'7', '8', '9', '0', '-', '=', '\b', '\t',
	'q', 'w', 'e', 'r', 't', 'y', 'u', 'i',
	'o', 'p', '[', ']', '\n', 0, 'a', 's',
	'd', 'f', 'g', 'h', 'j', 'k', 'l', ';',
	'\'', '`', 0, '\\', 'z', 'x', 'c', 'v',
	'b', 'n', 'm', ',', '.', '/', 0, '*',
	0, ' ',
}

var shifted = [58]byte{
	0, 0, '!', '@', '#', '$', '%', '^',
	'&', '*', '(', ')', '_', '+', '\b', '\t',
	'Q', 'W', 'E', 'R', 'T', 'Y', 'U', 'I',
	'O', 'P', '{', '}', '\n', 0, 'A', 'S',
	'D', 'F', 'G', 'H', 'J', 'K', 'L', ':',
	'"', '~', 0, '|', 'Z', 'X', 'C', 'V',
	'B', 'N', 'M', '<', '>', '?', 0, '*',
	0, ' ',
}

var (
	outbFn = cpu.Outb
	inbFn  = cpu.Inb
)

var shiftHeld bool

// Init flushes any scan code the PS/2 controller buffered before boot and
// clears shift state.
func Init() {
	for inbFn(statusPort)&statusOutputFull != 0 {
		inbFn(dataPort)
	}
	shiftHeld = false
}

// HasKey reports whether a scan code is waiting to be read.
func HasKey() bool {
	return inbFn(statusPort)&statusOutputFull != 0
}

// ReadKey consumes one scan code and returns the ASCII character it decodes
// to, and ok=true. Shift press/release codes, break (key-up) codes, and
// codes outside the table update shift state or are silently dropped and
// return ok=false; the caller should keep polling.
func ReadKey() (c byte, ok bool) {
	sc := inbFn(dataPort)

	switch sc {
	case scLeftShiftPress, scRightShiftPress:
		shiftHeld = true
		return 0, false
	case scLeftShiftRelease, scRightShiftRelease:
		shiftHeld = false
		return 0, false
	}

	if sc&0x80 != 0 || sc >= 58 {
		return 0, false
	}

	if shiftHeld {
		c = shifted[sc]
	} else {
		c = unshifted[sc]
	}
	return c, c != 0
}
