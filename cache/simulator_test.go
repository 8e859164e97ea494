package cache_test

import (
	"context"
	"errors"
	"io"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/cachesim/cache"
)

// oneSetConfig describes a single-set cache with 16B blocks, so the tag of
// an address is address / 16.
func oneSetConfig(associativity int) cache.Config {
	config := cache.DefaultConfig()
	config.BlockSize = 16
	config.Associativity = associativity
	config.UnifiedSize = 16 * associativity
	return config
}

func addrOf(tag uint32) uint32 {
	return tag * 16
}

func load(tag uint32) cache.Event {
	return cache.Event{Address: addrOf(tag), Kind: cache.DataLoad}
}

func store(tag uint32) cache.Event {
	return cache.Event{Address: addrOf(tag), Kind: cache.DataStore}
}

func fetch(tag uint32) cache.Event {
	return cache.Event{Address: addrOf(tag), Kind: cache.InstructionFetch}
}

func mustSimulator(config cache.Config, opts ...cache.Option) *cache.Simulator {
	s, err := cache.NewSimulator(config, opts...)
	Expect(err).NotTo(HaveOccurred())
	return s
}

func apply(s *cache.Simulator, events ...cache.Event) {
	for _, e := range events {
		Expect(s.Access(e)).To(Succeed())
	}
}

func unifiedSet(s *cache.Simulator) cache.Set {
	return s.Organization().(cache.Unified).Bank.Set(0)
}

// pseudoRandomTrace returns a deterministic mix of references.
func pseudoRandomTrace(n int, kinds ...cache.AccessKind) []cache.Event {
	events := make([]cache.Event, 0, n)
	x := uint32(12345)
	for i := 0; i < n; i++ {
		x = x*1664525 + 1013904223
		events = append(events, cache.Event{
			Address: (x >> 8) & 0x3FFF,
			Kind:    kinds[i%len(kinds)],
		})
	}
	return events
}

var _ = Describe("Simulator", func() {
	Describe("Lookup protocol", func() {
		var s *cache.Simulator

		BeforeEach(func() {
			s = mustSimulator(oneSetConfig(2))
		})

		It("should fill a set without replacements", func() {
			apply(s, load(5), load(9))

			stats := s.Stats().Data
			Expect(stats.Accesses).To(Equal(uint64(2)))
			Expect(stats.Misses).To(Equal(uint64(2)))
			Expect(stats.Replacements).To(Equal(uint64(0)))
			Expect(stats.DemandFetches).To(Equal(uint64(8)))
			Expect(unifiedSet(s).Len()).To(Equal(2))
			Expect(s.Organization().Banks()[0].Contents()).To(Equal(2))
		})

		It("should evict the least recently used line", func() {
			apply(s, load(5), load(9), load(13))

			stats := s.Stats().Data
			Expect(stats.Misses).To(Equal(uint64(3)))
			Expect(stats.Replacements).To(Equal(uint64(1)))
			Expect(tags(unifiedSet(s).Lines())).To(Equal([]uint32{13, 9}))
			Expect(s.Organization().Banks()[0].Contents()).To(Equal(2))

			apply(s, load(9))
			Expect(s.Stats().Data.Misses).To(Equal(uint64(3)))

			apply(s, load(5))
			Expect(s.Stats().Data.Misses).To(Equal(uint64(4)))
		})

		It("should promote a hit line", func() {
			apply(s, load(5), load(9), load(5))
			Expect(s.Stats().Data.Misses).To(Equal(uint64(2)))

			apply(s, load(13))
			Expect(tags(unifiedSet(s).Lines())).To(Equal([]uint32{13, 5}))
		})

		It("should hit on different offsets of the same block", func() {
			apply(s,
				cache.Event{Address: 0x50, Kind: cache.DataLoad},
				cache.Event{Address: 0x5C, Kind: cache.DataLoad},
			)

			Expect(s.Stats().Data.Hits()).To(Equal(uint64(1)))
		})

		It("should map addresses to their sets", func() {
			config := cache.DefaultConfig()
			config.UnifiedSize = 64
			config.BlockSize = 16
			config.Associativity = 1
			s = mustSimulator(config)

			// Four sets: 0x00, 0x10, 0x20 and 0x30 land in different sets.
			apply(s, load(0), load(1), load(2), load(3), load(0))

			stats := s.Stats().Data
			Expect(stats.Misses).To(Equal(uint64(4)))
			Expect(stats.Replacements).To(Equal(uint64(0)))

			// 0x40 shares set 0 with 0x00.
			apply(s, load(4))
			Expect(s.Stats().Data.Replacements).To(Equal(uint64(1)))
		})

		It("should keep accesses equal to hits plus misses", func() {
			config := cache.DefaultConfig()
			config.Associativity = 4
			config.UnifiedSize = 1024
			s = mustSimulator(config)

			apply(s, pseudoRandomTrace(5000,
				cache.InstructionFetch, cache.DataLoad, cache.DataStore)...)

			r := s.Stats()
			for _, st := range []cache.Statistics{r.Instruction, r.Data} {
				Expect(st.Accesses).To(Equal(st.Hits() + st.Misses))
				Expect(st.Replacements).To(BeNumerically("<=", st.Misses))
			}
			Expect(r.Instruction.Accesses + r.Data.Accesses).To(Equal(uint64(5000)))
		})
	})

	Describe("Store policy", func() {
		DescribeTable("no-write-allocate store miss bypasses the cache",
			func(writeBack bool) {
				config := oneSetConfig(2)
				config.WriteAllocate = false
				config.WriteBack = writeBack
				s := mustSimulator(config)

				apply(s, store(5))

				stats := s.Stats().Data
				Expect(stats.Accesses).To(Equal(uint64(1)))
				Expect(stats.Misses).To(Equal(uint64(1)))
				Expect(stats.CopiesBack).To(Equal(uint64(1)))
				Expect(stats.DemandFetches).To(Equal(uint64(0)))
				Expect(stats.Replacements).To(Equal(uint64(0)))
				Expect(unifiedSet(s).Len()).To(Equal(0))
			},
			Entry("write-back", true),
			Entry("write-through", false),
		)

		It("should not evict on a no-write-allocate store miss to a full set", func() {
			config := oneSetConfig(2)
			config.WriteAllocate = false
			s := mustSimulator(config)

			apply(s, load(5), load(9), store(13))

			Expect(tags(unifiedSet(s).Lines())).To(Equal([]uint32{9, 5}))
			Expect(s.Stats().Data.Replacements).To(Equal(uint64(0)))
		})

		It("should write through every store hit", func() {
			config := oneSetConfig(2)
			config.WriteBack = false
			s := mustSimulator(config)

			apply(s, load(5), store(5), store(5), store(5))

			stats := s.Stats().Data
			Expect(stats.CopiesBack).To(Equal(uint64(3)))
			Expect(stats.Misses).To(Equal(uint64(1)))
			Expect(unifiedSet(s).Lines()[0].Dirty).To(BeFalse())
		})

		It("should write through a store hit with no-write-allocate", func() {
			config := oneSetConfig(2)
			config.WriteBack = false
			config.WriteAllocate = false
			s := mustSimulator(config)

			apply(s, load(5), store(5))

			Expect(s.Stats().Data.CopiesBack).To(Equal(uint64(1)))
			Expect(unifiedSet(s).Lines()[0].Dirty).To(BeFalse())
		})

		It("should dirty a line on a write-back store hit", func() {
			s := mustSimulator(oneSetConfig(2))

			apply(s, load(5), load(9), store(5))

			Expect(unifiedSet(s).Lines()).To(Equal([]cache.Line{
				{Tag: 5, Dirty: true},
				{Tag: 9},
			}))
			Expect(s.Stats().Data.CopiesBack).To(Equal(uint64(0)))
		})

		It("should allocate a dirty line on a write-back store miss", func() {
			s := mustSimulator(oneSetConfig(2))

			apply(s, store(5))

			stats := s.Stats().Data
			Expect(stats.Misses).To(Equal(uint64(1)))
			Expect(stats.DemandFetches).To(Equal(uint64(4)))
			Expect(stats.CopiesBack).To(Equal(uint64(0)))
			Expect(unifiedSet(s).Lines()).To(Equal([]cache.Line{{Tag: 5, Dirty: true}}))
		})

		It("should allocate a clean line on a write-through store miss", func() {
			config := oneSetConfig(2)
			config.WriteBack = false
			s := mustSimulator(config)

			apply(s, store(5))

			stats := s.Stats().Data
			Expect(stats.Misses).To(Equal(uint64(1)))
			Expect(stats.DemandFetches).To(Equal(uint64(4)))
			Expect(stats.CopiesBack).To(Equal(uint64(1)))
			Expect(unifiedSet(s).Lines()).To(Equal([]cache.Line{{Tag: 5}}))
		})

		It("should copy back a dirty victim", func() {
			s := mustSimulator(oneSetConfig(2))

			apply(s, store(5), store(9))
			Expect(s.Stats().Data.CopiesBack).To(Equal(uint64(0)))

			apply(s, load(13))

			stats := s.Stats().Data
			Expect(stats.CopiesBack).To(Equal(uint64(4)))
			Expect(stats.Replacements).To(Equal(uint64(1)))
		})

		It("should copy back a dirty victim evicted by a store", func() {
			s := mustSimulator(oneSetConfig(1))

			apply(s, store(5), store(9))

			stats := s.Stats().Data
			Expect(stats.CopiesBack).To(Equal(uint64(4)))
			Expect(unifiedSet(s).Lines()).To(Equal([]cache.Line{{Tag: 9, Dirty: true}}))
		})

		It("should not copy back a clean victim", func() {
			s := mustSimulator(oneSetConfig(1))

			apply(s, load(5), load(9))

			Expect(s.Stats().Data.CopiesBack).To(Equal(uint64(0)))
		})

		It("should never dirty a line on loads", func() {
			s := mustSimulator(oneSetConfig(2))

			apply(s, fetch(5), load(9))

			Expect(s.Organization().Banks()[0].DirtyLines()).To(Equal(0))
		})
	})

	Describe("Routing", func() {
		It("should share capacity but not accounting in a unified cache", func() {
			s := mustSimulator(oneSetConfig(2))

			apply(s, fetch(5), load(5))

			r := s.Stats()
			Expect(r.Instruction.Accesses).To(Equal(uint64(1)))
			Expect(r.Instruction.Misses).To(Equal(uint64(1)))
			Expect(r.Data.Accesses).To(Equal(uint64(1)))
			Expect(r.Data.Misses).To(Equal(uint64(0)))
		})

		It("should charge an eviction to the stream that caused it", func() {
			s := mustSimulator(oneSetConfig(1))

			apply(s, store(5), fetch(9))

			r := s.Stats()
			Expect(r.Instruction.Replacements).To(Equal(uint64(1)))
			Expect(r.Instruction.CopiesBack).To(Equal(uint64(4)))
			Expect(r.Data.CopiesBack).To(Equal(uint64(0)))
		})

		It("should keep split banks apart", func() {
			config := oneSetConfig(2)
			Expect(config.Set(cache.ParamInstructionSize, 32)).To(Succeed())
			Expect(config.Set(cache.ParamDataSize, 32)).To(Succeed())
			s := mustSimulator(config)

			split, ok := s.Organization().(cache.Split)
			Expect(ok).To(BeTrue())
			Expect(split.Instruction).NotTo(BeIdenticalTo(split.Data))

			apply(s, fetch(5), load(5))

			r := s.Stats()
			Expect(r.Instruction.Misses).To(Equal(uint64(1)))
			Expect(r.Data.Misses).To(Equal(uint64(1)))
			Expect(split.Instruction.Contents()).To(Equal(1))
			Expect(split.Data.Contents()).To(Equal(1))
		})

		It("should match a unified cache on an instruction-only trace", func() {
			unifiedConfig := cache.DefaultConfig()
			unifiedConfig.Associativity = 2
			unifiedConfig.UnifiedSize = 2048

			splitConfig := unifiedConfig
			Expect(splitConfig.Set(cache.ParamInstructionSize, 2048)).To(Succeed())
			Expect(splitConfig.Set(cache.ParamDataSize, 0)).To(Succeed())

			unified := mustSimulator(unifiedConfig)
			split := mustSimulator(splitConfig)

			trace := pseudoRandomTrace(4000, cache.InstructionFetch)
			apply(unified, trace...)
			apply(split, trace...)

			unified.Flush()
			split.Flush()

			Expect(split.Stats().Instruction).To(Equal(unified.Stats().Instruction))
			Expect(split.Stats().Instruction.Misses).To(BeNumerically(">", 0))
		})

		It("should reject data accesses without a data bank", func() {
			config := oneSetConfig(2)
			Expect(config.Set(cache.ParamInstructionSize, 32)).To(Succeed())
			config.DataSize = 0
			s := mustSimulator(config)

			Expect(s.Access(load(5))).To(MatchError(cache.ErrNoDataBank))
			Expect(s.Stats()).To(Equal(cache.Report{}))
		})

		It("should reject instruction fetches without an instruction bank", func() {
			config := oneSetConfig(2)
			Expect(config.Set(cache.ParamDataSize, 32)).To(Succeed())
			config.InstructionSize = 0
			s := mustSimulator(config)

			err := s.Access(fetch(4))
			Expect(err).To(MatchError(cache.ErrNoInstructionBank))
			Expect(err).NotTo(MatchError(cache.ErrNoDataBank))
			Expect(s.Stats()).To(Equal(cache.Report{}))

			Expect(s.Access(load(4))).To(Succeed())
			Expect(s.Stats().Data.Accesses).To(Equal(uint64(1)))
		})

		It("should ignore an unknown access kind", func() {
			s := mustSimulator(oneSetConfig(2))

			err := s.Access(cache.Event{Address: 0x40, Kind: cache.AccessKind(7)})
			Expect(err).To(MatchError(cache.ErrUnknownAccessKind))
			Expect(s.Stats()).To(Equal(cache.Report{}))
			Expect(unifiedSet(s).Len()).To(Equal(0))
		})
	})

	Describe("Flush", func() {
		var s *cache.Simulator

		BeforeEach(func() {
			config := cache.DefaultConfig()
			config.Associativity = 2
			config.UnifiedSize = 256
			s = mustSimulator(config)
		})

		It("should copy back every dirty line without changing state", func() {
			apply(s, pseudoRandomTrace(500, cache.DataLoad, cache.DataStore, cache.InstructionFetch)...)

			bank := s.Organization().Banks()[0]
			dirty := bank.DirtyLines()
			contents := bank.Contents()
			before := s.Stats()

			s.Flush()

			after := s.Stats()
			Expect(after.Data.CopiesBack).To(Equal(before.Data.CopiesBack + uint64(4*dirty)))
			Expect(after.Instruction).To(Equal(before.Instruction))
			Expect(after.Data.Accesses).To(Equal(before.Data.Accesses))
			Expect(after.Data.Misses).To(Equal(before.Data.Misses))
			Expect(bank.Contents()).To(Equal(contents))
			Expect(bank.DirtyLines()).To(Equal(dirty))
		})

		It("should settle the dirty line left after an eviction", func() {
			s = mustSimulator(oneSetConfig(2))
			apply(s, store(5), store(9), load(13))

			s.Flush()

			Expect(s.Stats().Data.CopiesBack).To(Equal(uint64(8)))
		})

		It("should add nothing for a write-through cache", func() {
			config := oneSetConfig(2)
			config.WriteBack = false
			s = mustSimulator(config)
			apply(s, store(5), store(9))

			before := s.Stats()
			s.Flush()
			Expect(s.Stats()).To(Equal(before))
		})

		It("should flush both banks of a split cache", func() {
			config := oneSetConfig(2)
			Expect(config.Set(cache.ParamInstructionSize, 32)).To(Succeed())
			Expect(config.Set(cache.ParamDataSize, 32)).To(Succeed())
			s = mustSimulator(config)

			apply(s, fetch(1), store(5), store(9))
			s.Flush()

			Expect(s.Stats().Data.CopiesBack).To(Equal(uint64(8)))
			Expect(s.Stats().Instruction.CopiesBack).To(Equal(uint64(0)))
		})

		It("should be terminal", func() {
			apply(s, store(5))
			s.Flush()
			Expect(s.Flushed()).To(BeTrue())

			before := s.Stats()
			Expect(s.Access(load(5))).To(MatchError(cache.ErrFlushed))

			s.Flush()
			Expect(s.Stats()).To(Equal(before))
		})
	})

	Describe("Run", func() {
		var (
			mockCtrl *gomock.Controller
			src      *MockEventSource
		)

		BeforeEach(func() {
			mockCtrl = gomock.NewController(GinkgoT())
			src = NewMockEventSource(mockCtrl)
		})

		AfterEach(func() {
			mockCtrl.Finish()
		})

		It("should consume events until EOF", func() {
			s := mustSimulator(oneSetConfig(2))
			gomock.InOrder(
				src.EXPECT().Next().Return(load(5), nil),
				src.EXPECT().Next().Return(fetch(9), nil),
				src.EXPECT().Next().Return(store(5), nil),
				src.EXPECT().Next().Return(cache.Event{}, io.EOF),
			)

			Expect(s.Run(context.Background(), src)).To(Succeed())

			r := s.Stats()
			Expect(r.Data.Accesses).To(Equal(uint64(2)))
			Expect(r.Instruction.Accesses).To(Equal(uint64(1)))
		})

		It("should skip unknown kinds by default", func() {
			s := mustSimulator(oneSetConfig(2))
			gomock.InOrder(
				src.EXPECT().Next().Return(cache.Event{Address: 0x10, Kind: 3}, nil),
				src.EXPECT().Next().Return(load(5), nil),
				src.EXPECT().Next().Return(cache.Event{}, io.EOF),
			)

			Expect(s.Run(context.Background(), src)).To(Succeed())
			Expect(s.Stats().Data.Accesses).To(Equal(uint64(1)))
		})

		It("should stop at unknown kinds when strict", func() {
			s := mustSimulator(oneSetConfig(2), cache.WithStrictAccessKinds())
			src.EXPECT().Next().Return(cache.Event{Address: 0x10, Kind: 3}, nil)

			err := s.Run(context.Background(), src)
			Expect(err).To(MatchError(cache.ErrUnknownAccessKind))
		})

		It("should wrap source errors", func() {
			s := mustSimulator(oneSetConfig(2))
			readErr := errors.New("disk on fire")
			src.EXPECT().Next().Return(cache.Event{}, readErr)

			err := s.Run(context.Background(), src)
			Expect(err).To(MatchError(readErr))
		})

		It("should stop when the context is cancelled", func() {
			s := mustSimulator(oneSetConfig(2))
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			Expect(s.Run(ctx, src)).To(MatchError(context.Canceled))
		})
	})

	Describe("Hooks", func() {
		var (
			mockCtrl *gomock.Controller
			hook     *MockHook
		)

		BeforeEach(func() {
			mockCtrl = gomock.NewController(GinkgoT())
			hook = NewMockHook(mockCtrl)
		})

		AfterEach(func() {
			mockCtrl.Finish()
		})

		It("should report accesses, evictions and flushed lines", func() {
			var positions []*sim.HookPos
			var evicted cache.AccessResult
			var flushed cache.FlushedLine

			hook.EXPECT().Func(gomock.Any()).Do(func(ctx sim.HookCtx) {
				positions = append(positions, ctx.Pos)
				switch ctx.Pos {
				case cache.HookPosEvict:
					evicted = ctx.Detail.(cache.AccessResult)
				case cache.HookPosFlush:
					flushed = ctx.Detail.(cache.FlushedLine)
				}
			}).Times(5)

			s := mustSimulator(oneSetConfig(1), cache.WithHook(hook))
			apply(s, store(5), load(5), store(9))
			s.Flush()

			Expect(positions).To(Equal([]*sim.HookPos{
				cache.HookPosAccess,
				cache.HookPosAccess,
				cache.HookPosEvict,
				cache.HookPosAccess,
				cache.HookPosFlush,
			}))
			Expect(evicted.Victim).To(Equal(cache.Line{Tag: 5, Dirty: true}))
			Expect(evicted.Addr.Tag).To(Equal(uint32(9)))
			Expect(flushed).To(Equal(cache.FlushedLine{
				Stream:   cache.DataStream,
				SetIndex: 0,
				Line:     cache.Line{Tag: 9, Dirty: true},
			}))
		})

		It("should not report a flush when no line is dirty", func() {
			var positions []*sim.HookPos

			hook.EXPECT().Func(gomock.Any()).Do(func(ctx sim.HookCtx) {
				positions = append(positions, ctx.Pos)
			}).Times(2)

			s := mustSimulator(oneSetConfig(1), cache.WithHook(hook))
			apply(s, load(5), load(5))
			s.Flush()

			Expect(positions).To(Equal([]*sim.HookPos{
				cache.HookPosAccess,
				cache.HookPosAccess,
			}))
		})
	})
})
