// Package kmain wires together the supervisor setup, the Go runtime
// bootstrap, the driver collaborators, the sample movdbz REPL program,
// and kernel/io's bridge loop into the one entry point the boot
// trampoline calls, then drives that bridge loop forever.
package kmain

import (
	"pfwm/kernel"
	"pfwm/kernel/cpu"
	"pfwm/kernel/driver/kbd"
	"pfwm/kernel/driver/serial"
	"pfwm/kernel/driver/vga"
	"pfwm/kernel/goruntime"
	"pfwm/kernel/io"
	"pfwm/kernel/kfmt"
	"pfwm/kernel/supervisor"
	"pfwm/kernel/wm"
	"pfwm/repl"
)

var errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}

// Kmain is the kernel entry point that boot.go's main trampoline calls;
// main itself is invoked by the rt0 assembly code once it has set up a
// minimal g0 stack. Kmain never returns: once kernel/io's Bridge reports the weird
// machine has exited (an explicit "quit" line, or the cascade branching to
// -1 on an unrecognized command), the CPU is halted.
//
//go:noinline
func Kmain() {
	// The IDT installed below carries no gates besides the per-step task
	// gates the cascade maps in, so a stray maskable interrupt anywhere
	// past this point would triple-fault the machine.
	cpu.DisableInterrupts()

	// vga.Default is a package-level variable, not something constructed
	// with new/&T{} here: everything up to and including goruntime.Init
	// must run without the Go heap allocator, which isn't wired up until
	// goruntime.Init returns.
	con := vga.Default
	con.Init(vga.MemBase, vga.LightGrey, vga.Black)
	kfmt.SetOutputSink(con)

	var err *kernel.Error
	if err = supervisor.Setup(); err != nil {
		kfmt.Panic(err)
	} else if err = goruntime.Init(); err != nil {
		kfmt.Panic(err)
	}

	serial.Init()
	kbd.Init()

	con.SetColor(vga.LightGrey, vga.Black)
	bootLog := &kfmt.LineTagger{Sink: con, Tag: []byte("[pfwm] ")}
	kfmt.Fprintf(bootLog, "page-fault weird machine\n")
	kfmt.Fprintf(bootLog, "========================\n")

	m := wm.New()
	targets := repl.Build(m)

	kfmt.SetPanicContext(func() {
		kfmt.Printf("[wm] last resumed asmInst: %d\n", m.LastResume())
		kfmt.Printf("[wm] cr2: %x cr3: %x\n", cpu.ReadCR2(), cpu.ReadCR3())
	})

	bridge := io.NewBridge(m, targets, con)
	bridge.Run()

	con.SetColor(vga.LightGrey, vga.Black)
	con.WriteString("[halted]\n")
	cpu.Halt()

	// Use kfmt.Panic instead of panic to prevent the compiler from
	// treating it as dead code and eliminating it.
	kfmt.Panic(errKmainReturned)
}
