package trace

import (
	"bufio"
	"fmt"
	"io"

	"github.com/sarchlab/cachesim/cache"
)

// Writer writes events in the trace text format.
type Writer struct {
	w *bufio.Writer
}

// NewWriter creates a Writer that writes to w. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write writes one event.
func (w *Writer) Write(evt cache.Event) error {
	_, err := fmt.Fprintf(w.w, "%d %x\n", int(evt.Kind), evt.Address)
	return err
}

// Flush writes any buffered data.
func (w *Writer) Flush() error {
	return w.w.Flush()
}
