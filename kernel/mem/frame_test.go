package mem

import "testing"

func TestArenaAllocFrame(t *testing.T) {
	a := NewArena(ProgBase, 4)

	for i := Frame(0); i < 4; i++ {
		got := a.AllocFrame()
		if got != i {
			t.Fatalf("expected frame %d; got %d", i, got)
		}
	}

	if got := a.AllocFrame(); got.Valid() {
		t.Fatalf("expected InvalidFrame once the arena is exhausted; got %d", got)
	}
}

func TestArenaAllocFrames(t *testing.T) {
	a := NewArena(ProgBase, 10)

	first := a.AllocFrames(4)
	if first != 0 {
		t.Fatalf("expected first allocation to start at frame 0; got %d", first)
	}

	second := a.AllocFrames(4)
	if second != 4 {
		t.Fatalf("expected second allocation to start at frame 4; got %d", second)
	}

	if got := a.AllocFrames(4); got.Valid() {
		t.Fatalf("expected InvalidFrame when request exceeds remaining capacity; got %d", got)
	}

	if got := a.AllocFrames(2); !got.Valid() || got != 8 {
		t.Fatalf("expected a 2-frame request to succeed at frame 8; got %d", got)
	}
}

func TestArenaReset(t *testing.T) {
	a := NewArena(ProgBase, 2)
	a.AllocFrame()
	a.AllocFrame()

	if a.AllocFrame().Valid() {
		t.Fatal("expected arena to be exhausted before reset")
	}

	a.Reset()

	if got := a.AllocFrame(); got != 0 {
		t.Fatalf("expected reset arena to hand out frame 0 again; got %d", got)
	}
}

func TestFrameAddress(t *testing.T) {
	f := Frame(3)
	if got, exp := f.Address(), uintptr(3*4096); got != exp {
		t.Fatalf("expected frame address %#x; got %#x", exp, got)
	}
}

func TestArenaFrameAddress(t *testing.T) {
	a := NewArena(ProgBase, 4)
	f := a.AllocFrames(2)
	if got, exp := a.FrameAddress(f), ProgBase; got != exp {
		t.Fatalf("expected arena frame address %#x; got %#x", exp, got)
	}
}
