// Package benchmarks provides synthetic workloads and a harness that runs
// cache configurations over them for design-space exploration.
package benchmarks

import (
	"github.com/sarchlab/cachesim/cache"
	"github.com/sarchlab/cachesim/trace"
)

// Workload is a named source of trace events.
type Workload struct {
	// Name identifies the workload
	Name string

	// Description explains the access pattern
	Description string

	// Load returns the events of the workload, in order
	Load func() ([]cache.Event, error)
}

// GetWorkloads returns the standard set of synthetic workloads.
func GetWorkloads() []Workload {
	return []Workload{
		sequentialScan(),
		stridedScan(),
		tightLoop(),
		memoryCopy(),
		columnWalk(),
		randomMix(),
	}
}

// FileWorkload reads its events from a trace file.
func FileWorkload(name, path string) Workload {
	return Workload{
		Name:        name,
		Description: "trace file " + path,
		Load: func() ([]cache.Event, error) {
			f, err := trace.Open(path)
			if err != nil {
				return nil, err
			}
			defer func() { _ = f.Close() }()

			return trace.Collect(f)
		},
	}
}

func generated(name, description string, build func(b *builder)) Workload {
	return Workload{
		Name:        name,
		Description: description,
		Load: func() ([]cache.Event, error) {
			b := &builder{}
			build(b)
			return b.events, nil
		},
	}
}

const (
	codeBase = 0x00400000
	dataBase = 0x10000000
	copyDst  = 0x20000000
)

// builder accumulates events for a generated workload.
type builder struct {
	events []cache.Event
	pc     uint32
}

func (b *builder) fetch() {
	b.events = append(b.events, cache.Event{Address: b.pc, Kind: cache.InstructionFetch})
	b.pc += 4
}

func (b *builder) load(addr uint32) {
	b.events = append(b.events, cache.Event{Address: addr, Kind: cache.DataLoad})
}

func (b *builder) store(addr uint32) {
	b.events = append(b.events, cache.Event{Address: addr, Kind: cache.DataStore})
}

// loopBody emits n instruction fetches starting at base.
func (b *builder) loopBody(base uint32, n int) {
	b.pc = base
	for i := 0; i < n; i++ {
		b.fetch()
	}
}

// 1. Sequential scan - one pass over a 16KB array with a small loop body
func sequentialScan() Workload {
	return generated("sequential_scan",
		"16KB word-by-word read - spatial locality, one miss per block",
		func(b *builder) {
			for i := uint32(0); i < 16*1024; i += 4 {
				b.loopBody(codeBase, 3)
				b.load(dataBase + i)
			}
		})
}

// 2. Strided scan - one access per 64B line, two passes over 64KB
func stridedScan() Workload {
	return generated("strided_scan",
		"64B stride over 64KB, twice - no spatial locality, capacity misses",
		func(b *builder) {
			for pass := 0; pass < 2; pass++ {
				for i := uint32(0); i < 64*1024; i += 64 {
					b.loopBody(codeBase, 2)
					b.load(dataBase + i)
				}
			}
		})
}

// 3. Tight loop - small working set, should hit almost always
func tightLoop() Workload {
	return generated("tight_loop",
		"64-instruction loop over a 1KB read-modify-write buffer, 100 iterations",
		func(b *builder) {
			for iter := 0; iter < 100; iter++ {
				b.pc = codeBase
				for i := uint32(0); i < 256; i += 4 {
					b.fetch()
					if i%16 == 0 {
						b.load(dataBase + i*4)
						b.store(dataBase + i*4)
					}
				}
			}
		})
}

// 4. Memory copy - read one buffer, write another
func memoryCopy() Workload {
	return generated("memory_copy",
		"8KB word copy - exercises write policy and dirty evictions",
		func(b *builder) {
			for i := uint32(0); i < 8*1024; i += 4 {
				b.loopBody(codeBase+0x100, 4)
				b.load(dataBase + i)
				b.store(copyDst + i)
			}
		})
}

// 5. Column walk - column-major traversal of a row-major 64x64 int matrix
func columnWalk() Workload {
	return generated("column_walk",
		"column-major walk of a 64x64 word matrix - 256B stride, conflict misses",
		func(b *builder) {
			const n = 64
			for col := uint32(0); col < n; col++ {
				for row := uint32(0); row < n; row++ {
					b.loopBody(codeBase+0x200, 2)
					b.load(dataBase + (row*n+col)*4)
				}
			}
		})
}

// 6. Random mix - uniformly spread references with a fixed seed
func randomMix() Workload {
	return generated("random_mix",
		"20000 pseudo-random references over 64KB, 50% load 25% store 25% fetch",
		func(b *builder) {
			x := uint32(0x2545F491)
			for i := 0; i < 20000; i++ {
				x ^= x << 13
				x ^= x >> 17
				x ^= x << 5

				addr := dataBase + (x>>4)%(64*1024)&^3
				switch x & 3 {
				case 0, 1:
					b.load(addr)
				case 2:
					b.store(addr)
				default:
					b.pc = codeBase + (x>>8)%(16*1024)&^3
					b.fetch()
				}
			}
		})
}
