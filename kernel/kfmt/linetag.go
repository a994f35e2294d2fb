package kfmt

import "io"

// LineTagger is an io.Writer that prepends a fixed tag to every line it
// relays to Sink. kmain.Kmain routes its boot trace through one so those
// lines read distinctly from the weird machine's wire-protocol output
// (READY/Q:/Claude:/BYE), which must stay byte-exact and is written to
// the console and serial port directly.
type LineTagger struct {
	// Sink receives the tagged output.
	Sink io.Writer

	// Tag is emitted before the first byte of every line.
	Tag []byte

	midLine bool
}

// Write relays p to Sink, emitting Tag at the start of each line. The
// returned count covers p alone, never the injected tag bytes. A line
// left unterminated by one Write continues, untagged, in the next call.
func (w *LineTagger) Write(p []byte) (int, error) {
	var written int
	for written < len(p) {
		if !w.midLine {
			if _, err := w.Sink.Write(w.Tag); err != nil {
				return written, err
			}
			w.midLine = true
		}

		// Relay up to and including the next newline.
		end := written
		for end < len(p) && p[end] != '\n' {
			end++
		}
		eol := end < len(p)
		if eol {
			end++
		}

		n, err := w.Sink.Write(p[written:end])
		written += n
		if err != nil {
			return written, err
		}
		if eol {
			w.midLine = false
		}
	}
	return written, nil
}
