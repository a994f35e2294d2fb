// Package cpu exposes the 386 privileged instructions needed to build and
// enter the page-fault weird machine: control register access, GDT/IDT/TR
// loading, port I/O and the far jump that starts the fault cascade.
//
// Each function below is declared here and implemented in cpu_386.s,
// the usual split between a Go declaration and its hand-written
// assembly body for privileged instructions Go cannot express directly.
package cpu

var (
	cpuidFn = ID
)

// EnableInterrupts enables maskable interrupt delivery.
func EnableInterrupts()

// DisableInterrupts disables maskable interrupt delivery.
func DisableInterrupts()

// Halt stops instruction execution until the next interrupt.
func Halt()

// ReadCR0 returns the current value of CR0.
func ReadCR0() uint32

// WriteCR0 sets CR0 to val.
func WriteCR0(val uint32)

// ReadCR2 returns the faulting linear address recorded by the last page
// fault.
func ReadCR2() uint32

// ReadCR3 returns the physical address of the currently active page
// directory.
func ReadCR3() uint32

// WriteCR3 loads the page directory base register, switching the active
// address space.
func WriteCR3(val uint32)

// ReadCR4 returns the current value of CR4.
func ReadCR4() uint32

// WriteCR4 sets CR4 to val.
func WriteCR4(val uint32)

// ReadEFLAGS returns the current value of the EFLAGS register.
func ReadEFLAGS() uint32

// LoadGDT loads the GDTR with the descriptor table located at physAddr,
// using size as its limit (the table's byte size minus one), then reloads
// the segment registers.
func LoadGDT(physAddr uint32, size uint16)

// LoadIDT loads the IDTR with the descriptor table located at physAddr,
// using size as its limit (the table's byte size minus one).
func LoadIDT(physAddr uint32, size uint16)

// LoadTR loads the task register with the supplied GDT selector.
func LoadTR(selector uint16)

// Outb writes val to the given I/O port.
func Outb(port uint16, val uint8)

// Inb reads a byte from the given I/O port.
func Inb(port uint16) uint8

// LongJump1FF8 performs a far jump to offset 0 of GDT selector 0x1FF8; the
// first of the three rotating task-switch TSS slots (the cascade always
// starts at slot 0. Which real instruction that slot currently resolves to
// is controlled by rewriting the initial page directory, not by changing
// this jump's target). On 386 hardware, a far
// jump through a TSS descriptor IS a hardware task switch: it saves the
// current register/segment/CR3/EIP/EFLAGS state into the outgoing TSS (the
// supervisor TSS, selector 0x18) and loads them from the incoming one. The
// call does not return until a later task switch re-enters the supervisor
// TSS via an exit task gate; on return, the CPU has pushed a 4-byte error
// code onto the resumed stack, which this function discards before
// returning to its caller.
func LongJump1FF8()

// ID returns the CPUID leaf values in EAX, EBX, ECX, EDX order.
func ID(leaf uint32) (uint32, uint32, uint32, uint32)

// IsIntel returns true if the code is running on an Intel processor.
func IsIntel() bool {
	_, ebx, ecx, edx := cpuidFn(0)
	return ebx == 0x756e6547 && // "Genu"
		edx == 0x49656e69 && // "ineI"
		ecx == 0x6c65746e // "ntel"
}
