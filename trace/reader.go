// Package trace reads and writes memory reference traces.
//
// A trace is a text file with one reference per line:
//
//	<kind> <address>
//
// where kind is 0 for a data load, 1 for a data store and 2 for an
// instruction fetch, and address is hexadecimal with an optional 0x prefix.
// Blank lines and lines starting with '#' are skipped. Fields after the
// address are ignored.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sarchlab/cachesim/cache"
)

// Reader parses trace events from an io.Reader. It implements
// cache.EventSource.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{scanner: bufio.NewScanner(r)}
}

// Next returns the next event, or io.EOF at the end of the trace.
//
// A kind that parses as a number but is not one of the known codes is
// returned as is; the simulator decides what to do with it.
func (r *Reader) Next() (cache.Event, error) {
	for r.scanner.Scan() {
		r.line++

		text := strings.TrimSpace(r.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		evt, err := parseLine(text)
		if err != nil {
			return cache.Event{}, fmt.Errorf("line %d: %w", r.line, err)
		}

		return evt, nil
	}

	if err := r.scanner.Err(); err != nil {
		return cache.Event{}, fmt.Errorf("failed to read trace: %w", err)
	}

	return cache.Event{}, io.EOF
}

// Line returns the number of the last line read.
func (r *Reader) Line() int {
	return r.line
}

func parseLine(text string) (cache.Event, error) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return cache.Event{}, fmt.Errorf("expected \"<kind> <address>\", got %q", text)
	}

	kind, err := strconv.Atoi(fields[0])
	if err != nil {
		return cache.Event{}, fmt.Errorf("invalid access kind %q", fields[0])
	}

	hex := strings.TrimPrefix(strings.TrimPrefix(fields[1], "0x"), "0X")
	addr, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return cache.Event{}, fmt.Errorf("invalid address %q", fields[1])
	}

	return cache.Event{Address: uint32(addr), Kind: cache.AccessKind(kind)}, nil
}

// File is a Reader over an open trace file.
type File struct {
	*Reader
	f *os.File
}

// Open opens the trace file at path.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	return &File{Reader: NewReader(f), f: f}, nil
}

// Close closes the underlying file.
func (f *File) Close() error {
	return f.f.Close()
}

// Slice is an in-memory event source.
type Slice struct {
	events []cache.Event
	next   int
}

// NewSlice creates an event source over events.
func NewSlice(events []cache.Event) *Slice {
	return &Slice{events: events}
}

// Next returns the next event, or io.EOF.
func (s *Slice) Next() (cache.Event, error) {
	if s.next >= len(s.events) {
		return cache.Event{}, io.EOF
	}

	evt := s.events[s.next]
	s.next++

	return evt, nil
}

// Collect reads every remaining event of src.
func Collect(src cache.EventSource) ([]cache.Event, error) {
	var events []cache.Event

	for {
		evt, err := src.Next()
		if err == io.EOF {
			return events, nil
		}

		if err != nil {
			return events, err
		}

		events = append(events, evt)
	}
}
