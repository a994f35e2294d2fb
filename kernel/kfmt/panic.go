package kfmt

import (
	"pfwm/kernel"
	"pfwm/kernel/cpu"
)

var (
	// cpuHaltFn is mocked by tests and is automatically inlined by the compiler.
	cpuHaltFn = cpu.Halt

	errRuntimePanic = &kernel.Error{Module: "rt", Message: "unknown cause"}

	// panicContextFn, if set via SetPanicContext, is called after the
	// error banner and before the halt. kernel/kmain points this at a
	// closure over the running *wm.Machine so that a panic triggered
	// while the page-fault cascade is mid-flight (a Go runtime throw
	// inside kernel/io's bridge, say) also reports which movdbz
	// instruction the cascade was last resumed at, state that is
	// otherwise invisible once the CPU halts.
	panicContextFn func()
)

// SetPanicContext registers f to run during Panic, after the error banner
// and before the halt. Passing nil clears it.
func SetPanicContext(f func()) {
	panicContextFn = f
}

// Panic outputs the supplied error (if not nil) to the console and halts the
// CPU. Calls to Panic never return. Panic also works as a redirection target
// for calls to panic() (resolved via runtime.gopanic)
//go:redirect-from runtime.gopanic
func Panic(e interface{}) {
	var err *kernel.Error

	switch t := e.(type) {
	case *kernel.Error:
		err = t
	case string:
		panicString(t)
		return
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	}

	Printf("\n-----------------------------------\n")
	if err != nil {
		Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	if panicContextFn != nil {
		panicContextFn()
	}
	Printf("*** kernel panic: system halted ***")
	Printf("\n-----------------------------------\n")

	cpuHaltFn()
}

// panicString serves as a redirect target for runtime.throw
//go:redirect-from runtime.throw
func panicString(msg string) {
	errRuntimePanic.Message = msg
	Panic(errRuntimePanic)
}
