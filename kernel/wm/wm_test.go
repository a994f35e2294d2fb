package wm

import (
	"testing"
	"unsafe"

	"pfwm/kernel"
	"pfwm/kernel/gdt"
	"pfwm/kernel/idt"
	"pfwm/kernel/mem"
)

// uintptrOf returns the address of buf's backing array so tests can treat
// an ordinary Go slice as a stand-in for the identity-mapped program frame
// pool.
func uintptrOf(buf []byte) uintptr {
	return uintptr(unsafe.Pointer(&buf[0]))
}

// newTestMachine backs a Machine with a real Go buffer instead of the
// identity-mapped mem.ProgBase region, large enough for every frame
// framesPerArena reserves, and pins the EFLAGS snapshot generated TSS
// heads carry.
func newTestMachine(t *testing.T) *Machine {
	t.Helper()

	orig := readEFLAGSFn
	readEFLAGSFn = func() uint32 { return 0x00000002 }
	t.Cleanup(func() { readEFLAGSFn = orig })

	buf := make([]byte, framesPerArena*int(mem.PageSize))
	return NewAt(uintptrOf(buf))
}

func TestRegisterRoundTrip(t *testing.T) {
	m := newTestMachine(t)

	m.WriteReg(0, 41)
	if got := m.ReadReg(0); got != 41 {
		t.Fatalf("expected register 0 to read back 41; got %d", got)
	}

	m.WriteReg(0, 7)
	if got := m.ReadReg(0); got != 7 {
		t.Fatalf("expected overwritten register 0 to read back 7; got %d", got)
	}

	c := m.AllocConst(99)
	if got := m.ReadReg(c); got != 99 {
		t.Fatalf("expected constant register to read back 99; got %d", got)
	}
}

func TestLastResumeDefaultsToZero(t *testing.T) {
	// Launch/Resume both drive real privileged instructions (cpu.WriteCR3,
	// cpu.LongJump1FF8) that cannot execute inside a hosted go test
	// process, so this only checks the zero value LastResume reports
	// before the cascade is ever entered, the same testability boundary
	// kernel/cpu's own tests observe.
	m := newTestMachine(t)
	if got := m.LastResume(); got != 0 {
		t.Fatalf("expected LastResume to default to 0; got %d", got)
	}
}

func TestFrameForRegSentinels(t *testing.T) {
	m := newTestMachine(t)

	if got, ok := m.frameForReg(RegDiscard); !ok || got != m.discardFrame {
		t.Fatalf("expected RegDiscard to resolve to the discard frame; got %v, ok=%v want %v", got, ok, m.discardFrame)
	}
	if got, ok := m.frameForReg(RegConstOne); !ok || got != m.constOneFrame {
		t.Fatalf("expected RegConstOne to resolve to the constant-one frame; got %v, ok=%v want %v", got, ok, m.constOneFrame)
	}
	if got := m.ReadReg(RegConstOne); got != 1 {
		t.Fatalf("expected the constant-one register to read 1; got %d", got)
	}
	if got := m.ReadReg(RegDiscard); got != 0 {
		t.Fatalf("expected the discard register to read 0; got %d", got)
	}
}

func TestReadRegUnallocatedReturnsZero(t *testing.T) {
	m := newTestMachine(t)

	if _, ok := m.frameForReg(7); ok {
		t.Fatalf("expected register 7 to be unallocated")
	}
	if got := m.ReadReg(7); got != 0 {
		t.Fatalf("expected an unallocated register to read 0; got %d", got)
	}

	m.WriteReg(0, 42)
	if got := m.ReadReg(3); got != 0 {
		t.Fatalf("expected a never-written register to read 0 even once other registers exist; got %d", got)
	}
}

// TestWriteStepMapsStack checks that every generated micro-step's page
// directory maps PDE[0] (mem.StackBase) to a page table whose only entry
// names the shared stack frame; the mapping a hardware task switch's
// error-code push needs somewhere to land.
func TestWriteStepMapsStack(t *testing.T) {
	m := newTestMachine(t)

	m.WriteReg(0, 5)
	asmIdx := m.GenMovdbz(0, 0, -1, -1)

	for _, step := range []int{asmIdx * 3, asmIdx*3 + 1, asmIdx*3 + 2} {
		pdAddr := m.microStepAddr(step, pdOff)
		pd := kernel.Uint32View(pdAddr, mem.EntriesPerTable)

		pdeStack := pd[mem.PDEIndex(mem.StackBase)]
		wantPDE := mem.PDEPageTable(m.frameAddr(m.stackPTFrame))
		if pdeStack != wantPDE {
			t.Fatalf("step %d: PDE[0] = %#x; want %#x", step, pdeStack, wantPDE)
		}

		stackPT := kernel.Uint32View(m.frameAddr(m.stackPTFrame), mem.EntriesPerTable)
		ptEntry := stackPT[mem.PTEIndex(mem.StackBase)]
		wantPTE := mem.PTE4KiB(m.frameAddr(m.stackFrame))
		if ptEntry != wantPTE {
			t.Fatalf("step %d: stack PTE = %#x; want %#x", step, ptEntry, wantPTE)
		}
	}
}

// TestWriteStepMapsSupervisorRegion checks that generated page directories
// identity-map the 4MiB region holding the supervisor PD and TSS: the
// exit task gate reads and writes the supervisor TSS through the exiting
// step's page directory, not the supervisor's.
func TestWriteStepMapsSupervisorRegion(t *testing.T) {
	m := newTestMachine(t)

	m.WriteReg(0, 5)
	asmIdx := m.GenMovdbz(0, 0, -1, -1)

	pd := kernel.Uint32View(m.microStepAddr(asmIdx*3, pdOff), mem.EntriesPerTable)
	got := pd[mem.PDEIndex(mem.SupervisorPD)]
	if want := mem.PDE4MiB(mem.SupervisorPD); got != want {
		t.Fatalf("supervisor-region PDE = %#x; want %#x", got, want)
	}
}

// TestWriteStepGDTView checks the busy-bit plumbing of one micro-step: the
// shared GDT page table maps the program's GDT copy at mem.GDTBase, the
// step's own rotation slot maps the GDT-copy page holding its own
// descriptor as the TSS head (so the outgoing EAX/ECX save rewrites that
// descriptor not-busy), and the step's instruction page carries the same
// fresh descriptor at the matching page offset.
func TestWriteStepGDTView(t *testing.T) {
	m := newTestMachine(t)

	m.WriteReg(0, 5)
	asmIdx := m.GenMovdbz(0, 0, -1, -1)
	step := asmIdx * 3

	gdtPT := kernel.Uint32View(m.frameAddr(m.gdtPTFrame), mem.EntriesPerTable)
	for page := mem.Frame(0); page < gdtSpanPages; page++ {
		if got, want := gdtPT[page], mem.PTE4KiB(m.frameAddr(m.gdtFrame+page)); got != want {
			t.Fatalf("GDT PT entry %d = %#x; want %#x", page, got, want)
		}
	}

	instPT := kernel.Uint32View(m.microStepAddr(step, instPTOff), mem.EntriesPerTable)
	ownHead := instPT[mem.PTEIndex(mem.TSSSlotAddr(step))]
	wantHead := mem.PTE4KiB(m.frameAddr(m.gdtPageFor(mem.TSSSlotSelector(step))))
	if ownHead != wantHead {
		t.Fatalf("own-slot head PTE = %#x; want the GDT page holding the step's descriptor (%#x)", ownHead, wantHead)
	}

	inst := kernel.Uint32View(m.microStepAddr(step, instOff), mem.EntriesPerTable)
	descr := gdt.Encode(gdt.TypeTSS32, 0, uint32(mem.TSSSlotAddr(step)), 0x67)
	if inst[tssHeadDescrOffset] != descr[0] || inst[tssHeadDescrOffset+1] != descr[1] {
		t.Fatalf("instruction-page descriptor = %#x %#x; want %#x %#x",
			inst[tssHeadDescrOffset], inst[tssHeadDescrOffset+1], descr[0], descr[1])
	}
	if inst[tssHeadCR3Offset] != uint32(m.microStepAddr(step, pdOff)) {
		t.Fatalf("instruction-page CR3 = %#x; want %#x", inst[tssHeadCR3Offset], m.microStepAddr(step, pdOff))
	}
	if inst[tssHeadEIPOffset] != unmappedEIP {
		t.Fatalf("instruction-page EIP = %#x; want %#x", inst[tssHeadEIPOffset], unmappedEIP)
	}
}

// TestWriteGDTCopy checks that the program GDT copy carries the same six
// descriptors as the live table (flat code/data, the supervisor TSS, and
// the three rotating slots) above a zeroed null descriptor.
func TestWriteGDTCopy(t *testing.T) {
	m := newTestMachine(t)
	m.writeGDT()

	table := kernel.Uint32View(m.frameAddr(m.gdtFrame), int(gdtSpanPages)*mem.EntriesPerTable)
	entryAt := func(selector uint16) gdt.Entry {
		idx := int(selector >> 3)
		return gdt.Entry{table[idx*2], table[idx*2+1]}
	}

	if entryAt(gdt.NullSelector) != (gdt.Entry{}) {
		t.Fatal("expected the null descriptor to be zeroed")
	}
	if got, want := entryAt(gdt.CodeSelector), gdt.Encode(gdt.TypeCode32, 1, 0, 0xfffff); got != want {
		t.Fatalf("code descriptor = %#x; want %#x", got, want)
	}
	if got, want := entryAt(gdt.DataSelector), gdt.Encode(gdt.TypeData32, 1, 0, 0xfffff); got != want {
		t.Fatalf("data descriptor = %#x; want %#x", got, want)
	}
	if got, want := entryAt(gdt.SupervisorSelector), gdt.Encode(gdt.TypeTSS32, 0, uint32(mem.SupervisorTSSAddr), 0x67); got != want {
		t.Fatalf("supervisor TSS descriptor = %#x; want %#x", got, want)
	}
	for i := 0; i < 3; i++ {
		got := entryAt(mem.TSSSlotSelector(i))
		want := gdt.Encode(gdt.TypeTSS32, 0, uint32(mem.TSSSlotAddr(i)), 0x67)
		if got != want {
			t.Fatalf("rotating slot %d descriptor = %#x; want %#x", i, got, want)
		}
	}
}

// TestRealStepExitGates checks that a real step whose branch targets are
// both -1 wires its IDT page's #PF and #DF task gates to the supervisor
// TSS selector.
func TestRealStepExitGates(t *testing.T) {
	m := newTestMachine(t)

	m.WriteReg(0, 5)
	asmIdx := m.GenMovdbz(0, 0, -1, -1)

	idtPage := kernel.Uint32View(m.microStepAddr(asmIdx*3+2, idtOff), mem.EntriesPerTable)
	wantGate := idt.TaskGate(mem.SupervisorTSSSelector)
	for _, vector := range []idt.InterruptNumber{idt.PageFault, idt.DoubleFault} {
		got := idt.Gate{idtPage[int(vector)*2], idtPage[int(vector)*2+1]}
		if got != wantGate {
			t.Fatalf("vector %d gate = %#x; want exit gate %#x", vector, got, wantGate)
		}
	}
}

// TestGenMovdbzWiring checks that a single movdbz instruction's three
// micro-steps map the register (tail) frames a real hardware task switch
// needs, not just the TSS head every step also carries.
func TestGenMovdbzWiring(t *testing.T) {
	m := newTestMachine(t)

	src := 0
	dst := 1
	m.WriteReg(src, 3)
	m.WriteReg(dst, 0)

	asmIdx := m.GenMovdbz(dst, src, -1, -1)
	if asmIdx != 0 {
		t.Fatalf("expected the first generated instruction to be numbered 0; got %d", asmIdx)
	}

	dstFrame, _ := m.frameForReg(dst)
	srcFrame, _ := m.frameForReg(src)

	base := asmIdx * 3
	steps := []struct {
		name      string
		step      int
		pfTarget  int
		dfTarget  int
		wantDst   mem.Frame
		wantPFSrc mem.Frame
		wantDFSrc mem.Frame
	}{
		{"NOP0", base, base + 2, base + 2, m.discardFrame, srcFrame, srcFrame},
		{"NOP1", base + 1, base + 2, base + 2, m.discardFrame, srcFrame, srcFrame},
		{"REAL", base + 2, exitStep, exitStep, dstFrame, m.constOneFrame, m.constOneFrame},
	}

	for _, s := range steps {
		t.Run(s.name, func(t *testing.T) {
			instPTAddr := m.microStepAddr(s.step, instPTOff)
			instPT := kernel.Uint32View(instPTAddr, mem.EntriesPerTable)

			ownTail := instPT[mem.PTEIndex(mem.TSSSlotAddr(s.step))+1]
			if want := mem.PTE4KiB(m.frameAddr(s.wantDst)); ownTail != want {
				t.Errorf("own-slot tail PTE: got %#x want %#x", ownTail, want)
			}

			if s.pfTarget != exitStep {
				pfTail := instPT[mem.PTEIndex(mem.TSSSlotAddr(s.pfTarget))+1]
				if want := mem.PTE4KiB(m.frameAddr(s.wantPFSrc)); pfTail != want {
					t.Errorf("pf-target tail PTE: got %#x want %#x", pfTail, want)
				}
				pfHead := instPT[mem.PTEIndex(mem.TSSSlotAddr(s.pfTarget))]
				if want := mem.PTE4KiB(m.microStepAddr(s.pfTarget, instOff)); pfHead != want {
					t.Errorf("pf-target head PTE: got %#x want %#x", pfHead, want)
				}
			}

			if s.dfTarget != exitStep && s.dfTarget != s.pfTarget {
				dfTail := instPT[mem.PTEIndex(mem.TSSSlotAddr(s.dfTarget))+1]
				if want := mem.PTE4KiB(m.frameAddr(s.wantDFSrc)); dfTail != want {
					t.Errorf("df-target tail PTE: got %#x want %#x", dfTail, want)
				}
			}
		})
	}
}
