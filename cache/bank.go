package cache

import (
	"fmt"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// Bank is one physical cache: an Akita directory with LRU replacement and
// the address geometry used to report tags and set indices.
type Bank struct {
	size          int
	associativity int
	geometry      Geometry

	// Block tags hold the block-aligned address, as Akita caches do.
	directory *akitacache.DirectoryImpl

	contents int
}

// NewBank creates an empty bank of size bytes.
//
// The number of sets is size / (associativity * blockSize) and must be a
// positive power of two.
func NewBank(size, blockSize, associativity int) (*Bank, error) {
	numSets, err := setCount(size, blockSize, associativity)
	if err != nil {
		return nil, err
	}

	geometry, err := NewGeometry(blockSize, numSets)
	if err != nil {
		return nil, err
	}

	return &Bank{
		size:          size,
		associativity: associativity,
		geometry:      geometry,
		directory: akitacache.NewDirectory(
			numSets,
			associativity,
			blockSize,
			akitacache.NewLRUVictimFinder(),
		),
	}, nil
}

func setCount(size, blockSize, associativity int) (int, error) {
	if blockSize <= 0 || associativity <= 0 {
		return 0, fmt.Errorf(
			"%w: block size %d and associativity %d must be positive",
			ErrInvalidGeometry, blockSize, associativity)
	}

	lineBytes := blockSize * associativity
	if size <= 0 || size%lineBytes != 0 {
		return 0, fmt.Errorf(
			"%w: size %d is not a positive multiple of %d (associativity x block size)",
			ErrInvalidGeometry, size, lineBytes)
	}

	numSets := size / lineBytes
	if !isPowerOfTwo(numSets) {
		return 0, fmt.Errorf(
			"%w: size %d gives %d sets, not a power of two",
			ErrInvalidGeometry, size, numSets)
	}

	return numSets, nil
}

// Size returns the capacity of the bank in bytes.
func (b *Bank) Size() int {
	return b.size
}

// Associativity returns the number of lines per set.
func (b *Bank) Associativity() int {
	return b.associativity
}

// Geometry returns the address geometry of the bank.
func (b *Bank) Geometry() Geometry {
	return b.geometry
}

// NumSets returns the number of sets.
func (b *Bank) NumSets() int {
	return b.directory.NumSets
}

// Set returns a view of the set at index i.
func (b *Bank) Set(i int) Set {
	return Set{bank: b, index: i}
}

// Contents returns the number of resident lines across all sets.
func (b *Bank) Contents() int {
	return b.contents
}

// DirtyLines returns the number of resident dirty lines across all sets.
func (b *Bank) DirtyLines() int {
	n := 0
	for i := 0; i < b.NumSets(); i++ {
		n += b.Set(i).DirtyCount()
	}

	return n
}

// ForEachLine calls fn for every resident line, set by set, most recently
// used first.
func (b *Bank) ForEachLine(fn func(setIndex int, line Line)) {
	for i, set := range b.directory.GetSets() {
		for j := len(set.LRUQueue) - 1; j >= 0; j-- {
			block := set.LRUQueue[j]
			if block.IsValid {
				fn(i, b.line(block))
			}
		}
	}
}

func (b *Bank) blockAddr(addr uint32) uint64 {
	return uint64(addr) &^ uint64(b.geometry.BlockSize-1)
}

// lookup returns the resident block holding addr, or nil.
func (b *Bank) lookup(addr uint32) *akitacache.Block {
	return b.directory.Lookup(0, b.blockAddr(addr))
}

// findVictim returns the block that a fill of addr lands in: an empty way
// if the set has one, the least recently used line otherwise.
func (b *Bank) findVictim(addr uint32) *akitacache.Block {
	return b.directory.FindVictim(b.blockAddr(addr))
}

func (b *Bank) visit(block *akitacache.Block) {
	b.directory.Visit(block)
}

func (b *Bank) line(block *akitacache.Block) Line {
	return Line{
		Tag:   b.geometry.Decode(uint32(block.Tag)).Tag,
		Dirty: block.IsDirty,
	}
}
