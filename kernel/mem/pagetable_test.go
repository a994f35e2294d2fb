package mem

import (
	"testing"
	"unsafe"
)

func TestPDE4MiB(t *testing.T) {
	got := PDE4MiB(0x00C00000)
	want := uint32(0x00C00000) | flagPresent | flagRW | flagPS
	if got != want {
		t.Fatalf("expected %#x; got %#x", want, got)
	}
}

func TestPDEPageTableAndPTE4KiB(t *testing.T) {
	if got, want := PDEPageTable(0x1000), uint32(0x1000)|flagPresent|flagRW; got != want {
		t.Fatalf("PDEPageTable: expected %#x; got %#x", want, got)
	}
	if got, want := PTE4KiB(0x2000), uint32(0x2000)|flagPresent|flagRW; got != want {
		t.Fatalf("PTE4KiB: expected %#x; got %#x", want, got)
	}
}

func TestPDEIndexAndPTEIndex(t *testing.T) {
	if got, want := PDEIndex(InstBase), 1; got != want {
		t.Fatalf("PDEIndex(InstBase): expected %d; got %d", want, got)
	}
	if got, want := PDEIndex(KCodeBase), 3; got != want {
		t.Fatalf("PDEIndex(KCodeBase): expected %d; got %d", want, got)
	}
	if got, want := PDEIndex(GDTBase), 6; got != want {
		t.Fatalf("PDEIndex(GDTBase): expected %d; got %d", want, got)
	}
	if got, want := PTEIndex(0x1234000), 0x234; got != want {
		t.Fatalf("PTEIndex: expected %#x; got %#x", want, got)
	}
}

func TestZeroTable(t *testing.T) {
	buf := make([]uint32, EntriesPerTable)
	for i := range buf {
		buf[i] = 0xdeadbeef
	}
	addr := uintptr(unsafe.Pointer(&buf[0]))

	view := ZeroTable(addr)
	if len(view) != EntriesPerTable {
		t.Fatalf("expected a view of %d entries; got %d", EntriesPerTable, len(view))
	}
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("entry %d: expected zero; got %#x", i, v)
		}
	}
}
