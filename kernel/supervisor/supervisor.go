// Package supervisor builds the ordinary, non-weird-machine address space
// the page-fault weird machine launches from and always returns to: the
// identity-mapped supervisor page directory, the live GDT, the supervisor's
// own TSS, and TR. kernel/wm assumes this setup already exists before its
// first Launch/Resume call.
package supervisor

import (
	"pfwm/kernel"
	"pfwm/kernel/cpu"
	"pfwm/kernel/gdt"
	"pfwm/kernel/idt"
	"pfwm/kernel/kfmt"
	"pfwm/kernel/mem"
)

// identityMapPDEs is the number of page-directory entries the supervisor's
// own page directory identity-maps with 4MiB PSE pages: 512 entries *
// 4MiB = 2GiB, the upper bound this kernel supports for physical memory.
const identityMapPDEs = 2 * int(uintptr(1<<30)/mem.LargePageSize)

// idtrLimit is the IDTR limit: one gate per x86 interrupt vector, 8
// bytes each, minus one (0x7FF for idt.NumEntries=256).
const idtrLimit = uint16(idt.NumEntries*8 - 1)

var done bool

// Setup installs the supervisor's identity-mapped paging, GDT, IDT and
// TR. It is idempotent: a later call is a no-op.
//
// Every weird-machine program the caller subsequently builds with
// kernel/wm assumes this mapping is already active: kernel/wm's per-step
// page directories identity-map KCodeBase and ProgBase exactly the way
// this supervisor PD does, so that supervisor code and the program frame
// pool stay reachable no matter which page directory CR3 currently names.
func Setup() *kernel.Error {
	if done {
		return nil
	}

	if !cpu.IsIntel() {
		// The busy-bit clear trick every kernel/wm step relies on depends
		// on the order in which the CPU reads the destination TSS
		// descriptor relative to the CR3 switch during a hardware task
		// switch, an ordering validated only against Intel CPUs and the
		// emulators that model them, so a non-Intel host is worth a log
		// line even though Setup proceeds regardless.
		kfmt.Printf("[supervisor] warning: non-Intel CPU; weird-machine TSS busy-bit rotation unvalidated on this vendor\n")
	}

	buildPD(mem.SupervisorPD)
	enablePagingWithPSE()

	// The supervisor TSS's CR3 field (dword 7) is the one field the exit
	// task gate consults that the outgoing save at launch never refreshes:
	// a task switch saves registers and EIP/EFLAGS into the old TSS but
	// leaves CR3 untouched, so it must name the supervisor page directory
	// here or the first exit would load a garbage address space.
	tss := mem.ZeroTable(mem.SupervisorTSSAddr)
	tss[7] = uint32(mem.SupervisorPD)

	// The live GDT carries the same six descriptors as the program-frame
	// copy kernel/wm maintains for the running cascade; lgdt and ltr read
	// this one under the identity mapping.
	gdt.WriteTo(mem.GDTBase, uint32(mem.SupervisorTSSAddr))
	for i := 0; i < 3; i++ {
		gdt.SetTSSSlot(mem.GDTBase, mem.TSSSlotSelector(i), uint32(mem.TSSSlotAddr(i)))
	}
	cpu.LoadGDT(uint32(mem.GDTBase), mem.GDTSize)
	cpu.LoadTR(gdt.SupervisorSelector)

	// The supervisor's own view of InstBase is a flat identity page, not
	// the per-step instruction/IDT page table kernel/wm installs once the
	// cascade is running: leaving it zeroed (every gate absent) is
	// intentional. A fault here before the first launch is a programming
	// error and is meant to triple-fault the machine rather than silently
	// recover.
	mem.ZeroTable(mem.InstBase)
	cpu.LoadIDT(uint32(mem.InstBase), idtrLimit)

	done = true
	return nil
}

// buildPD installs a flat identity map of the first 2GiB using 4MiB PSE
// pages at physAddr. This single page directory must remain valid for as
// long as supervisor code (including kernel/io's bridge) runs; kernel/wm's
// Resume restores CR3 to mem.SupervisorPD on every cascade exit. Taking
// physAddr as a parameter (rather than hardcoding mem.SupervisorPD) lets
// tests back it with a plain Go buffer, the same seam kernel/wm.NewAt
// uses for the program frame pool.
func buildPD(physAddr uintptr) {
	pd := mem.ZeroTable(physAddr)
	for i := 0; i < identityMapPDEs; i++ {
		pd[i] = mem.PDE4MiB(uintptr(i) * mem.LargePageSize)
	}
}

// enablePagingWithPSE sets CR4.PSE (large pages) and CR3 to the
// supervisor page directory, then sets CR0.PG to turn on paging. Because
// the directory just installed identity-maps the address every
// currently-executing instruction lives at, enabling paging here never
// faults.
func enablePagingWithPSE() {
	cpu.WriteCR4(cpu.ReadCR4() | cr4PSE)
	cpu.WriteCR3(uint32(mem.SupervisorPD))
	cpu.WriteCR0(cpu.ReadCR0() | cr0PG)
}

const (
	cr4PSE = uint32(1 << 4)
	cr0PG  = uint32(1 << 31)
)
