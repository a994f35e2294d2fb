package kfmt

import (
	"bytes"
	"strings"
	"testing"
)

func TestEarlyBufferDrainInWriteOrder(t *testing.T) {
	var (
		b   earlyBuffer
		out bytes.Buffer
	)

	b.Write([]byte("booting "))
	b.Write([]byte("weird machine\n"))
	b.drainTo(&out)

	if got, exp := out.String(), "booting weird machine\n"; got != exp {
		t.Fatalf("expected drained output %q; got %q", exp, got)
	}
}

func TestEarlyBufferDrainEmpties(t *testing.T) {
	var (
		b   earlyBuffer
		out bytes.Buffer
	)

	b.Write([]byte("once\n"))
	b.drainTo(&out)
	out.Reset()

	b.drainTo(&out)
	if out.Len() != 0 {
		t.Fatalf("expected a second drain to produce nothing; got %q", out.String())
	}

	b.Write([]byte("again\n"))
	b.drainTo(&out)
	if got, exp := out.String(), "again\n"; got != exp {
		t.Fatalf("expected the buffer to be reusable after a drain; got %q want %q", got, exp)
	}
}

func TestEarlyBufferKeepsMostRecentBytes(t *testing.T) {
	var (
		b   earlyBuffer
		out bytes.Buffer
	)

	// Overfill by a prefix the screen could never have shown anyway; only
	// the final earlyBufSize bytes must survive.
	lost := strings.Repeat("x", 17)
	kept := strings.Repeat("0123456789", earlyBufSize/10)
	b.Write([]byte(lost + kept))
	b.drainTo(&out)

	if got := out.String(); got != kept {
		t.Fatalf("expected only the most recent %d bytes to survive; got %d bytes starting %q",
			earlyBufSize, len(got), got[:16])
	}
}

func TestEarlyBufferWrapAcrossDrain(t *testing.T) {
	var (
		b   earlyBuffer
		out bytes.Buffer
	)

	// Force the retained window to straddle the end of the backing array:
	// fill to capacity, then push it a few bytes further.
	b.Write(bytes.Repeat([]byte{'a'}, earlyBufSize))
	b.Write([]byte("tail"))
	b.drainTo(&out)

	got := out.String()
	if len(got) != earlyBufSize {
		t.Fatalf("expected exactly %d drained bytes; got %d", earlyBufSize, len(got))
	}
	if !strings.HasSuffix(got, "tail") {
		t.Fatalf("expected the drained output to end with the newest bytes; got tail %q", got[len(got)-8:])
	}
	if strings.ContainsRune(got[:len(got)-4], 't') {
		t.Fatal("expected the overwritten prefix to consist of the original fill only")
	}
}
