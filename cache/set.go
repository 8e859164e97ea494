package cache

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// Line is the state the simulator keeps for one resident block.
type Line struct {
	Tag   uint32
	Dirty bool
}

// Set is a read-only view of one index of a bank's directory.
type Set struct {
	bank  *Bank
	index int
}

func (s Set) blocks() *akitacache.Set {
	return &s.bank.directory.Sets[s.index]
}

// Capacity returns the associativity of the set.
func (s Set) Capacity() int {
	return s.bank.associativity
}

// Len returns the number of resident lines.
func (s Set) Len() int {
	n := 0
	for _, block := range s.blocks().Blocks {
		if block.IsValid {
			n++
		}
	}

	return n
}

// Full reports whether a fill has to replace a resident line.
func (s Set) Full() bool {
	return s.Len() == s.Capacity()
}

// Lines returns the resident lines, most recently used first.
func (s Set) Lines() []Line {
	queue := s.blocks().LRUQueue
	lines := make([]Line, 0, len(queue))

	for i := len(queue) - 1; i >= 0; i-- {
		if queue[i].IsValid {
			lines = append(lines, s.bank.line(queue[i]))
		}
	}

	return lines
}

// DirtyCount returns the number of resident dirty lines.
func (s Set) DirtyCount() int {
	n := 0
	for _, block := range s.blocks().Blocks {
		if block.IsValid && block.IsDirty {
			n++
		}
	}

	return n
}
