// Package vga drives an 80x25 VGA text-mode console at the fixed,
// identity-mapped framebuffer address (0xB8000), written to directly by
// polling. This console is never probed for: the hardware
// here is fixed by the emulator target, so the fields that a
// multiboot-aware console would discover from framebuffer info are
// compile-time constants instead.
package vga

import (
	"reflect"
	"unsafe"
)

const (
	// MemBase is the physical (== virtual, identity mapped) address of the
	// VGA text-mode framebuffer.
	MemBase = uintptr(0xB8000)

	width  = 80
	height = 25
)

// Standard VGA text-mode attribute colors.
const (
	Black      = uint8(0)
	Blue       = uint8(1)
	Green      = uint8(2)
	Cyan       = uint8(3)
	Red        = uint8(4)
	Magenta    = uint8(5)
	Brown      = uint8(6)
	LightGrey  = uint8(7)
	DarkGrey   = uint8(8)
	LightBlue  = uint8(9)
	LightGreen = uint8(10)
	LightCyan  = uint8(11)
	LightRed   = uint8(12)
	LightMag   = uint8(13)
	Yellow     = uint8(14)
	White      = uint8(15)
)

// Console is an 80x25 VGA text console. The zero value is not usable;
// set one up with Init.
type Console struct {
	fb       []uint16
	row, col int
	fg, bg   uint8
}

// Default is the kernel's single VGA console. It is a package-level
// variable rather than something constructed with new/&Console{} at
// runtime, so that obtaining its address is just a static reference, not
// a call into the Go runtime's allocator, which lets the console come up
// before kernel/goruntime.Init runs.
var Default = &Console{}

// Init sets up c, overlaying its framebuffer onto physAddr and clearing
// the screen to the given default colors. Init only assigns fields; it
// performs no heap allocation, so it is safe to call before
// kernel/goruntime.Init.
func (c *Console) Init(physAddr uintptr, fg, bg uint8) {
	c.fb = *(*[]uint16)(unsafe.Pointer(&reflect.SliceHeader{
		Len:  width * height,
		Cap:  width * height,
		Data: physAddr,
	}))
	c.fg = fg
	c.bg = bg
	c.clear()
}

func entry(ch byte, fg, bg uint8) uint16 {
	return uint16(ch) | uint16(bg)<<12 | uint16(fg)<<8
}

func (c *Console) clear() {
	blank := entry(' ', c.fg, c.bg)
	for i := range c.fb {
		c.fb[i] = blank
	}
	c.row, c.col = 0, 0
}

// SetColor changes the foreground/background used by subsequent WriteByte
// calls.
func (c *Console) SetColor(fg, bg uint8) {
	c.fg, c.bg = fg, bg
}

func (c *Console) scroll() {
	copy(c.fb, c.fb[width:])
	blank := entry(' ', c.fg, c.bg)
	for i := (height - 1) * width; i < height*width; i++ {
		c.fb[i] = blank
	}
	c.row = height - 1
}

// WriteByte emits a single character, handling '\n', '\r' and '\b'.
func (c *Console) WriteByte(ch byte) {
	switch ch {
	case '\n':
		c.col = 0
		c.row++
		if c.row >= height {
			c.scroll()
		}
		return
	case '\r':
		c.col = 0
		return
	case '\b':
		if c.col > 0 {
			c.col--
			c.fb[c.row*width+c.col] = entry(' ', c.fg, c.bg)
		}
		return
	}

	c.fb[c.row*width+c.col] = entry(ch, c.fg, c.bg)
	c.col++
	if c.col >= width {
		c.col = 0
		c.row++
		if c.row >= height {
			c.scroll()
		}
	}
}

// WriteString emits every byte of s in order.
func (c *Console) WriteString(s string) {
	for i := 0; i < len(s); i++ {
		c.WriteByte(s[i])
	}
}

// Write implements io.Writer so a Console can back kernel/kfmt.SetOutputSink.
func (c *Console) Write(p []byte) (int, error) {
	for _, b := range p {
		c.WriteByte(b)
	}
	return len(p), nil
}
