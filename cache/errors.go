package cache

import "errors"

var (
	// ErrUnknownParam is returned by Config.Set for an unrecognized selector.
	ErrUnknownParam = errors.New("unknown cache parameter")

	// ErrInvalidGeometry is returned when sizes do not give a power-of-two
	// block size and set count.
	ErrInvalidGeometry = errors.New("invalid cache geometry")

	// ErrUnknownAccessKind is returned for a trace event whose kind is not
	// an instruction fetch, data load or data store. No counter changes.
	ErrUnknownAccessKind = errors.New("unknown access kind")

	// ErrNoDataBank is returned for a data access against a split cache
	// configured with a data size of 0.
	ErrNoDataBank = errors.New("split cache has no data bank")

	// ErrNoInstructionBank is returned for an instruction fetch against a
	// split cache configured with an instruction size of 0.
	ErrNoInstructionBank = errors.New("split cache has no instruction bank")

	// ErrFlushed is returned for an access after Flush.
	ErrFlushed = errors.New("simulator already flushed")
)
