package cache

import (
	"fmt"
	"math/bits"
)

// WordSize is the number of bytes in one word of memory traffic.
const WordSize = 4

// Geometry describes how a bank splits a 32-bit address into tag, set index
// and block offset. Block size and set count are powers of two.
type Geometry struct {
	BlockSize int
	NumSets   int

	offsetBits uint
	indexBits  uint
	offsetMask uint32
	indexMask  uint32
}

// Address is a decoded memory address.
type Address struct {
	Tag      uint32
	SetIndex int
	Offset   uint32
}

// NewGeometry builds the masks for a bank with the given block size and set
// count.
func NewGeometry(blockSize, numSets int) (Geometry, error) {
	if !isPowerOfTwo(blockSize) {
		return Geometry{}, fmt.Errorf(
			"%w: block size %d is not a power of two", ErrInvalidGeometry, blockSize)
	}

	if !isPowerOfTwo(numSets) {
		return Geometry{}, fmt.Errorf(
			"%w: set count %d is not a power of two", ErrInvalidGeometry, numSets)
	}

	offsetBits := log2(blockSize)
	indexBits := log2(numSets)
	if offsetBits+indexBits > 32 {
		return Geometry{}, fmt.Errorf(
			"%w: %d sets of %d bytes exceed a 32-bit address space",
			ErrInvalidGeometry, numSets, blockSize)
	}

	return Geometry{
		BlockSize:  blockSize,
		NumSets:    numSets,
		offsetBits: offsetBits,
		indexBits:  indexBits,
		offsetMask: lowMask(offsetBits),
		indexMask:  lowMask(indexBits),
	}, nil
}

// Decode splits addr into tag, set index and block offset.
func (g Geometry) Decode(addr uint32) Address {
	return Address{
		Tag:      addr >> (g.offsetBits + g.indexBits),
		SetIndex: int((addr >> g.offsetBits) & g.indexMask),
		Offset:   addr & g.offsetMask,
	}
}

// WordsPerBlock returns the traffic, in words, of moving one block.
func (g Geometry) WordsPerBlock() uint64 {
	return uint64(g.BlockSize / WordSize)
}

// Decode is a convenience wrapper around Geometry.Decode.
func Decode(addr uint32, g Geometry) Address {
	return g.Decode(addr)
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func log2(n int) uint {
	return uint(bits.TrailingZeros(uint(n)))
}

// lowMask returns a mask with the n least significant bits set.
func lowMask(n uint) uint32 {
	if n >= 32 {
		return ^uint32(0)
	}

	return uint32(1)<<n - 1
}
