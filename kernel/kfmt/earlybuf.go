package kfmt

import "io"

// earlyBufSize is the capacity of the pre-sink buffer: one full 80x25
// VGA text screen. The only sink this kernel ever attaches is the VGA
// console, so output the screen could not have displayed anyway marks
// the natural overwrite boundary for boot trace emitted before the
// console exists.
const earlyBufSize = 80 * 25

// earlyBuffer retains the most recent earlyBufSize bytes written to it.
// Printf output lands here until kmain.Kmain attaches the VGA console
// via SetOutputSink, which drains the retained bytes in write order.
type earlyBuffer struct {
	buf   [earlyBufSize]byte
	start int // index of the oldest retained byte
	n     int // number of retained bytes
}

// Write appends p, discarding the oldest retained bytes once the buffer
// is full. It never fails; the io.Writer-shaped signature lets doWrite
// treat the buffer as just another output target.
func (b *earlyBuffer) Write(p []byte) (int, error) {
	for _, c := range p {
		if b.n == len(b.buf) {
			b.buf[b.start] = c
			b.start = (b.start + 1) % len(b.buf)
			continue
		}
		b.buf[(b.start+b.n)%len(b.buf)] = c
		b.n++
	}
	return len(p), nil
}

// drainTo writes the retained bytes to w in the order they were written
// and empties the buffer. At most two writes go straight out of the
// backing array, so draining needs no transfer buffer and therefore no
// allocation, which matters because SetOutputSink runs before
// goruntime.Init.
func (b *earlyBuffer) drainTo(w io.Writer) {
	end := b.start + b.n
	switch {
	case end > len(b.buf):
		w.Write(b.buf[b.start:])
		w.Write(b.buf[:end-len(b.buf)])
	case b.n > 0:
		w.Write(b.buf[b.start:end])
	}
	b.start, b.n = 0, 0
}
