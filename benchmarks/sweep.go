package benchmarks

import (
	"fmt"

	"github.com/sarchlab/cachesim/cache"
)

// Grid lists the values each swept parameter takes. An empty list keeps
// the base value.
type Grid struct {
	Sizes          []int
	Associativity  []int
	BlockSizes     []int
	WritePolicies  []bool // true = write-back
	AllocatePolicy []bool // true = write-allocate
}

// Expand builds one variant per combination of grid values applied to base.
// Sizes apply to the unified bank, or to both banks of a split cache.
// Combinations that do not form a valid geometry are skipped.
func (g Grid) Expand(base cache.Config) []Variant {
	sizes := g.Sizes
	if len(sizes) == 0 {
		sizes = []int{0}
	}

	assocs := orDefault(g.Associativity, base.Associativity)
	blocks := orDefault(g.BlockSizes, base.BlockSize)
	writeBacks := orDefaultBool(g.WritePolicies, base.WriteBack)
	allocates := orDefaultBool(g.AllocatePolicy, base.WriteAllocate)

	var variants []Variant

	for _, size := range sizes {
		for _, assoc := range assocs {
			for _, block := range blocks {
				for _, wb := range writeBacks {
					for _, wa := range allocates {
						c := base
						c.Associativity = assoc
						c.BlockSize = block
						c.WriteBack = wb
						c.WriteAllocate = wa

						if size != 0 {
							if c.Split {
								c.InstructionSize = size
								c.DataSize = size
							} else {
								c.UnifiedSize = size
							}
						}

						if c.Validate() != nil {
							continue
						}

						variants = append(variants, Variant{Name: VariantName(c), Config: c})
					}
				}
			}
		}
	}

	return variants
}

// VariantName builds a short name such as "u8192-a2-b16-wb-wa".
func VariantName(c cache.Config) string {
	var org string
	if c.Split {
		org = fmt.Sprintf("i%d-d%d", c.InstructionSize, c.DataSize)
	} else {
		org = fmt.Sprintf("u%d", c.UnifiedSize)
	}

	wp := "wt"
	if c.WriteBack {
		wp = "wb"
	}

	ap := "nw"
	if c.WriteAllocate {
		ap = "wa"
	}

	return fmt.Sprintf("%s-a%d-b%d-%s-%s", org, c.Associativity, c.BlockSize, wp, ap)
}

func orDefault(values []int, def int) []int {
	if len(values) == 0 {
		return []int{def}
	}

	return values
}

func orDefaultBool(values []bool, def bool) []bool {
	if len(values) == 0 {
		return []bool{def}
	}

	return values
}
