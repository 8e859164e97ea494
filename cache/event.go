package cache

import "fmt"

// AccessKind is the type of a trace reference. The values match the codes
// used in trace files.
type AccessKind int

// Access kinds.
const (
	DataLoad         AccessKind = 0
	DataStore        AccessKind = 1
	InstructionFetch AccessKind = 2
)

func (k AccessKind) String() string {
	switch k {
	case DataLoad:
		return "load"
	case DataStore:
		return "store"
	case InstructionFetch:
		return "ifetch"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Valid reports whether k is one of the three known kinds.
func (k AccessKind) Valid() bool {
	return k == DataLoad || k == DataStore || k == InstructionFetch
}

// Stream returns the stream that accesses of kind k are charged to.
func (k AccessKind) Stream() Stream {
	if k == InstructionFetch {
		return InstructionStream
	}

	return DataStream
}

// Event is one memory reference from a trace.
type Event struct {
	Address uint32
	Kind    AccessKind
}

// EventSource produces trace events in order. Next returns io.EOF when the
// trace is exhausted.
type EventSource interface {
	Next() (Event, error)
}

// AccessResult describes what one access did to the cache.
type AccessResult struct {
	Event  Event
	Stream Stream
	Addr   Address

	Hit bool
	// Bypassed is set for a no-write-allocate store miss.
	Bypassed bool
	// Evicted is set when a resident line was replaced; Victim holds it.
	Evicted bool
	Victim  Line
}
