// Package cache models a set-associative cache with LRU replacement and
// configurable write policy, driven by a trace of memory references.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sarchlab/akita/v4/sim"
)

// Hook positions invoked by the Simulator.
var (
	// HookPosAccess fires after every routed access. Detail is the
	// AccessResult.
	HookPosAccess = &sim.HookPos{Name: "CacheAccess"}
	// HookPosEvict fires when an access replaces a resident line. Detail
	// is the AccessResult.
	HookPosEvict = &sim.HookPos{Name: "CacheEvict"}
	// HookPosIgnoredAccess fires for an event with an unknown kind.
	HookPosIgnoredAccess = &sim.HookPos{Name: "CacheIgnoredAccess"}
	// HookPosFlush fires for every dirty line written back by Flush.
	// Detail is the FlushedLine.
	HookPosFlush = &sim.HookPos{Name: "CacheFlush"}
)

// Organization is either Unified or Split.
type Organization interface {
	// Banks lists the banks, instruction bank first for Split.
	Banks() []*Bank

	bankFor(kind AccessKind) *Bank
	flushStream(b *Bank) Stream
}

// Unified is a single bank shared by instruction and data references.
type Unified struct {
	Bank *Bank
}

// Banks returns the single bank.
func (u Unified) Banks() []*Bank {
	return []*Bank{u.Bank}
}

func (u Unified) bankFor(AccessKind) *Bank {
	return u.Bank
}

// Only stores dirty a line, so residual writes in a shared bank are data
// traffic.
func (u Unified) flushStream(*Bank) Stream {
	return DataStream
}

// Split keeps separate instruction and data banks. A bank is nil when its
// size is 0.
type Split struct {
	Instruction *Bank
	Data        *Bank
}

// Banks returns the present banks, instruction bank first.
func (s Split) Banks() []*Bank {
	banks := make([]*Bank, 0, 2)
	if s.Instruction != nil {
		banks = append(banks, s.Instruction)
	}

	if s.Data != nil {
		banks = append(banks, s.Data)
	}

	return banks
}

func (s Split) bankFor(kind AccessKind) *Bank {
	if kind == InstructionFetch {
		return s.Instruction
	}

	return s.Data
}

func (s Split) flushStream(b *Bank) Stream {
	if b == s.Instruction {
		return InstructionStream
	}

	return DataStream
}

// FlushedLine is the hook detail of HookPosFlush.
type FlushedLine struct {
	Stream   Stream
	SetIndex int
	Line     Line
}

// Simulator owns the banks and counters of one simulation run. It is not
// safe for concurrent use; events must be applied in trace order.
type Simulator struct {
	*sim.HookableBase

	config Config
	org    Organization
	engine engine

	stats [2]Statistics

	strict  bool
	hooked  bool
	flushed bool
}

// An Option customizes a Simulator.
type Option func(*Simulator)

// WithStrictAccessKinds makes Run stop at an event with an unknown kind
// instead of skipping it.
func WithStrictAccessKinds() Option {
	return func(s *Simulator) {
		s.strict = true
	}
}

// WithHook registers a hook at construction time.
func WithHook(h sim.Hook) Option {
	return func(s *Simulator) {
		s.AcceptHook(h)
	}
}

// NewSimulator validates config and builds its banks.
func NewSimulator(config Config, opts ...Option) (*Simulator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	org, err := buildOrganization(config)
	if err != nil {
		return nil, err
	}

	s := &Simulator{
		HookableBase: sim.NewHookableBase(),
		config:       config,
		org:          org,
		engine: engine{
			writeBack:     config.WriteBack,
			writeAllocate: config.WriteAllocate,
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func buildOrganization(c Config) (Organization, error) {
	if !c.Split {
		b, err := NewBank(c.UnifiedSize, c.BlockSize, c.Associativity)
		if err != nil {
			return nil, fmt.Errorf("unified cache: %w", err)
		}

		return Unified{Bank: b}, nil
	}

	var split Split
	var err error

	if c.InstructionSize != 0 {
		split.Instruction, err = NewBank(c.InstructionSize, c.BlockSize, c.Associativity)
		if err != nil {
			return nil, fmt.Errorf("instruction cache: %w", err)
		}
	}

	if c.DataSize != 0 {
		split.Data, err = NewBank(c.DataSize, c.BlockSize, c.Associativity)
		if err != nil {
			return nil, fmt.Errorf("data cache: %w", err)
		}
	}

	return split, nil
}

// AcceptHook registers a hook.
func (s *Simulator) AcceptHook(h sim.Hook) {
	s.HookableBase.AcceptHook(h)
	s.hooked = true
}

// Config returns the active configuration.
func (s *Simulator) Config() Config {
	return s.config
}

// Organization returns the bank layout.
func (s *Simulator) Organization() Organization {
	return s.org
}

// Stats returns a snapshot of both streams' counters.
func (s *Simulator) Stats() Report {
	return Report{
		Instruction: s.stats[InstructionStream],
		Data:        s.stats[DataStream],
	}
}

// Flushed reports whether Flush has been called.
func (s *Simulator) Flushed() bool {
	return s.flushed
}

// Access applies one event. An event of unknown kind changes nothing and
// returns ErrUnknownAccessKind.
func (s *Simulator) Access(evt Event) error {
	if s.flushed {
		return ErrFlushed
	}

	if !evt.Kind.Valid() {
		s.invoke(HookPosIgnoredAccess, evt, nil)
		return fmt.Errorf("%w: %v at 0x%08x", ErrUnknownAccessKind, evt.Kind, evt.Address)
	}

	bank := s.org.bankFor(evt.Kind)
	if bank == nil {
		missing := ErrNoDataBank
		if evt.Kind == InstructionFetch {
			missing = ErrNoInstructionBank
		}

		return fmt.Errorf("%w: %v at 0x%08x", missing, evt.Kind, evt.Address)
	}

	stream := evt.Kind.Stream()
	res := AccessResult{
		Event:  evt,
		Stream: stream,
		Addr:   bank.geometry.Decode(evt.Address),
	}

	if evt.Kind == DataStore {
		s.engine.store(bank, &s.stats[stream], &res)
	} else {
		s.engine.load(bank, &s.stats[stream], &res)
	}

	if res.Evicted {
		s.invoke(HookPosEvict, evt, res)
	}

	s.invoke(HookPosAccess, evt, res)

	return nil
}

// Run feeds every event of src through Access until src returns io.EOF.
// Events with unknown kinds are skipped unless the simulator is strict.
// Run stops early when ctx is cancelled; the state stays consistent.
func (s *Simulator) Run(ctx context.Context, src EventSource) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		evt, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("failed to read trace: %w", err)
		}

		err = s.Access(evt)
		if errors.Is(err, ErrUnknownAccessKind) && !s.strict {
			continue
		}

		if err != nil {
			return err
		}
	}
}

// Flush charges one block of copy-back traffic for every dirty resident
// line. Occupancy and the other counters are not changed. The simulator
// accepts no accesses afterwards; a second Flush does nothing.
func (s *Simulator) Flush() {
	if s.flushed {
		return
	}

	s.flushed = true

	for _, bank := range s.org.Banks() {
		stream := s.org.flushStream(bank)
		words := bank.geometry.WordsPerBlock()

		bank.ForEachLine(func(setIndex int, line Line) {
			if !line.Dirty {
				return
			}

			s.stats[stream].CopiesBack += words
			s.invoke(HookPosFlush, nil, FlushedLine{
				Stream:   stream,
				SetIndex: setIndex,
				Line:     line,
			})
		})
	}
}

func (s *Simulator) invoke(pos *sim.HookPos, item, detail interface{}) {
	if !s.hooked {
		return
	}

	s.InvokeHook(sim.HookCtx{
		Domain: s,
		Pos:    pos,
		Item:   item,
		Detail: detail,
	})
}
