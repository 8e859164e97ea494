package cache

import (
	"fmt"
	"io"
)

// WriteSettings prints the configuration in a human-readable form.
func (c Config) WriteSettings(w io.Writer) {
	_, _ = fmt.Fprintln(w, "*** CACHE SETTINGS ***")

	if c.Split {
		_, _ = fmt.Fprintln(w, "  Split I- D-cache")
		_, _ = fmt.Fprintf(w, "  I-cache size: \t%d\n", c.InstructionSize)
		_, _ = fmt.Fprintf(w, "  D-cache size: \t%d\n", c.DataSize)
	} else {
		_, _ = fmt.Fprintln(w, "  Unified I- D-cache")
		_, _ = fmt.Fprintf(w, "  Size: \t%d\n", c.UnifiedSize)
	}

	_, _ = fmt.Fprintf(w, "  Associativity: \t%d\n", c.Associativity)
	_, _ = fmt.Fprintf(w, "  Block size: \t%d\n", c.BlockSize)
	_, _ = fmt.Fprintf(w, "  Write policy: \t%s\n", c.writePolicy())
	_, _ = fmt.Fprintf(w, "  Allocation policy: \t%s\n", c.allocationPolicy())
}

func (c Config) writePolicy() string {
	if c.WriteBack {
		return "WRITE BACK"
	}

	return "WRITE THROUGH"
}

func (c Config) allocationPolicy() string {
	if c.WriteAllocate {
		return "WRITE ALLOCATE"
	}

	return "WRITE NO ALLOCATE"
}

// WriteStats prints per-stream counters followed by the combined traffic.
func (r Report) WriteStats(w io.Writer) {
	_, _ = fmt.Fprintln(w, "*** CACHE STATISTICS ***")

	writeStream(w, "INSTRUCTIONS", r.Instruction)
	writeStream(w, "DATA", r.Data)

	_, _ = fmt.Fprintln(w, " TRAFFIC (in words)")
	_, _ = fmt.Fprintf(w, "  demand fetch:  %d\n", r.DemandFetches())
	_, _ = fmt.Fprintf(w, "  copies back:   %d\n", r.CopiesBack())
}

func writeStream(w io.Writer, title string, s Statistics) {
	_, _ = fmt.Fprintf(w, " %s\n", title)
	_, _ = fmt.Fprintf(w, "  accesses:  %d\n", s.Accesses)
	_, _ = fmt.Fprintf(w, "  misses:    %d\n", s.Misses)

	if s.Accesses == 0 {
		_, _ = fmt.Fprintln(w, "  miss rate: 0 (0)")
	} else {
		_, _ = fmt.Fprintf(w, "  miss rate: %2.4f (hit rate %2.4f)\n",
			s.MissRate(), s.HitRate())
	}

	_, _ = fmt.Fprintf(w, "  replace:   %d\n", s.Replacements)
}
