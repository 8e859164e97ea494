package cache

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// engine applies the replacement and write policy of one configuration to a
// bank and the counters of one stream.
type engine struct {
	writeBack     bool
	writeAllocate bool
}

// load handles instruction fetches and data loads. Loads never dirty a line.
func (e engine) load(b *Bank, st *Statistics, res *AccessResult) {
	st.Accesses++

	if block := b.lookup(res.Event.Address); block != nil {
		b.visit(block)
		res.Hit = true

		return
	}

	e.fill(b, st, res)
}

// store handles data stores.
func (e engine) store(b *Bank, st *Statistics, res *AccessResult) {
	st.Accesses++

	if block := b.lookup(res.Event.Address); block != nil {
		b.visit(block)
		res.Hit = true
		e.write(block, st)

		return
	}

	if !e.writeAllocate {
		// The write goes straight to memory.
		st.Misses++
		st.CopiesBack++
		res.Bypassed = true

		return
	}

	block := e.fill(b, st, res)
	e.write(block, st)
}

// fill brings the block for res into its set as the most recently used
// line, replacing the least recently used line if the set is full.
func (e engine) fill(b *Bank, st *Statistics, res *AccessResult) *akitacache.Block {
	words := b.geometry.WordsPerBlock()

	st.Misses++
	st.DemandFetches += words

	victim := b.findVictim(res.Event.Address)
	if victim.IsValid {
		st.Replacements++

		if victim.IsDirty {
			st.CopiesBack += words
		}

		res.Evicted = true
		res.Victim = b.line(victim)
	} else {
		b.contents++
	}

	victim.Tag = b.blockAddr(res.Event.Address)
	victim.IsValid = true
	victim.IsDirty = false
	b.visit(victim)

	return victim
}

// write applies a store to a resident block. Write-through retires the word
// immediately and keeps the line clean.
func (e engine) write(block *akitacache.Block, st *Statistics) {
	if e.writeBack {
		block.IsDirty = true
		return
	}

	st.CopiesBack++
}
