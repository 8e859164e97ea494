package benchmarks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sarchlab/cachesim/cache"
	"github.com/sarchlab/cachesim/trace"
)

// Variant is a named cache configuration to evaluate.
type Variant struct {
	Name   string
	Config cache.Config
}

// Result holds the statistics of one variant over one workload.
type Result struct {
	// Variant names the cache configuration
	Variant string `json:"variant"`

	// Workload names the trace
	Workload string `json:"workload"`

	// Config is the cache configuration used
	Config cache.Config `json:"config"`

	// Events is the number of trace events fed to the simulator
	Events int `json:"events"`

	// Stats holds both streams' counters after flush
	Stats cache.Report `json:"stats"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// ResultRecorder persists results as they are produced.
type ResultRecorder interface {
	Record(r Result) error
}

// HarnessConfig configures the harness.
type HarnessConfig struct {
	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Strict stops a run at an event with an unknown access kind
	Strict bool

	// Recorder, if set, receives every result
	Recorder ResultRecorder

	// Verbose enables progress output
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Output: os.Stdout,
	}
}

// Harness runs every variant over every workload.
type Harness struct {
	config    HarnessConfig
	variants  []Variant
	workloads []Workload
}

// NewHarness creates a new harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}

	return &Harness{config: config}
}

// AddVariant adds a cache configuration.
func (h *Harness) AddVariant(v Variant) {
	h.variants = append(h.variants, v)
}

// AddVariants adds several cache configurations.
func (h *Harness) AddVariants(vs []Variant) {
	h.variants = append(h.variants, vs...)
}

// AddWorkload adds a workload.
func (h *Harness) AddWorkload(w Workload) {
	h.workloads = append(h.workloads, w)
}

// AddWorkloads adds several workloads.
func (h *Harness) AddWorkloads(ws []Workload) {
	h.workloads = append(h.workloads, ws...)
}

// RunAll runs every variant over every workload, workload by workload.
// Each run gets a fresh simulator.
func (h *Harness) RunAll(ctx context.Context) ([]Result, error) {
	results := make([]Result, 0, len(h.variants)*len(h.workloads))

	for _, w := range h.workloads {
		events, err := w.Load()
		if err != nil {
			return results, fmt.Errorf("workload %s: %w", w.Name, err)
		}

		for _, v := range h.variants {
			r, err := h.run(ctx, v, w.Name, events)
			if err != nil {
				return results, fmt.Errorf("workload %s, variant %s: %w", w.Name, v.Name, err)
			}

			if h.config.Recorder != nil {
				if err := h.config.Recorder.Record(r); err != nil {
					return results, fmt.Errorf("failed to record result: %w", err)
				}
			}

			results = append(results, r)
		}
	}

	return results, nil
}

func (h *Harness) run(
	ctx context.Context,
	v Variant,
	workload string,
	events []cache.Event,
) (Result, error) {
	var opts []cache.Option
	if h.config.Strict {
		opts = append(opts, cache.WithStrictAccessKinds())
	}

	s, err := cache.NewSimulator(v.Config, opts...)
	if err != nil {
		return Result{}, err
	}

	if h.config.Verbose {
		_, _ = fmt.Fprintf(os.Stderr, "running %s on %s (%d events)\n",
			v.Name, workload, len(events))
	}

	start := time.Now()

	if err := s.Run(ctx, trace.NewSlice(events)); err != nil {
		return Result{}, err
	}

	s.Flush()

	return Result{
		Variant:  v.Name,
		Workload: workload,
		Config:   v.Config,
		Events:   len(events),
		Stats:    s.Stats(),
		WallTime: time.Since(start),
	}, nil
}

// PrintResults writes a human-readable report.
func (h *Harness) PrintResults(results []Result) {
	out := h.config.Output

	_, _ = fmt.Fprintln(out, "=== Cache Sweep Results ===")
	_, _ = fmt.Fprintln(out, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(out, "Workload: %s  Variant: %s\n", r.Workload, r.Variant)
		_, _ = fmt.Fprintf(out, "  Events: %d\n", r.Events)
		_, _ = fmt.Fprintln(out, "  --- I-Stream ---")
		printStream(out, r.Stats.Instruction)
		_, _ = fmt.Fprintln(out, "  --- D-Stream ---")
		printStream(out, r.Stats.Data)
		_, _ = fmt.Fprintln(out, "  --- Traffic (words) ---")
		_, _ = fmt.Fprintf(out, "  Demand Fetch: %d\n", r.Stats.DemandFetches())
		_, _ = fmt.Fprintf(out, "  Copies Back:  %d\n", r.Stats.CopiesBack())
		_, _ = fmt.Fprintf(out, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(out, "")
	}
}

func printStream(out io.Writer, s cache.Statistics) {
	_, _ = fmt.Fprintf(out, "  Accesses:     %d\n", s.Accesses)
	_, _ = fmt.Fprintf(out, "  Misses:       %d\n", s.Misses)
	_, _ = fmt.Fprintf(out, "  Hit Rate:     %.4f\n", s.HitRate())
	_, _ = fmt.Fprintf(out, "  Replacements: %d\n", s.Replacements)
}

// PrintCSV writes one line per result.
func (h *Harness) PrintCSV(results []Result) {
	_, _ = fmt.Fprintln(h.config.Output,
		"workload,variant,split,size,isize,dsize,assoc,block,write_back,write_alloc,"+
			"i_accesses,i_misses,i_replacements,d_accesses,d_misses,d_replacements,"+
			"demand_fetch,copies_back")

	for _, r := range results {
		c := r.Config
		_, _ = fmt.Fprintf(h.config.Output,
			"%s,%s,%t,%d,%d,%d,%d,%d,%t,%t,%d,%d,%d,%d,%d,%d,%d,%d\n",
			r.Workload,
			r.Variant,
			c.Split,
			c.UnifiedSize,
			c.InstructionSize,
			c.DataSize,
			c.Associativity,
			c.BlockSize,
			c.WriteBack,
			c.WriteAllocate,
			r.Stats.Instruction.Accesses,
			r.Stats.Instruction.Misses,
			r.Stats.Instruction.Replacements,
			r.Stats.Data.Accesses,
			r.Stats.Data.Misses,
			r.Stats.Data.Replacements,
			r.Stats.DemandFetches(),
			r.Stats.CopiesBack(),
		)
	}
}

// SweepReport is the JSON output format.
type SweepReport struct {
	// Timestamp when the sweep was run
	Timestamp string `json:"timestamp"`

	// Results is the list of individual results
	Results []Result `json:"results"`

	// Summary contains aggregate statistics
	Summary SweepSummary `json:"summary"`
}

// SweepSummary contains aggregate statistics across all results.
type SweepSummary struct {
	TotalRuns     int           `json:"total_runs"`
	TotalEvents   int           `json:"total_events"`
	TotalWallTime time.Duration `json:"total_wall_time_ns"`

	// Best names the result with the lowest combined miss rate
	Best string `json:"best,omitempty"`
}

// PrintJSON writes the results as a JSON report.
func (h *Harness) PrintJSON(results []Result) error {
	report := SweepReport{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Results:   results,
		Summary:   Summarize(results),
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

// Summarize computes the aggregate statistics of results.
func Summarize(results []Result) SweepSummary {
	summary := SweepSummary{TotalRuns: len(results)}

	bestRate := 2.0
	for _, r := range results {
		summary.TotalEvents += r.Events
		summary.TotalWallTime += r.WallTime

		rate := CombinedMissRate(r.Stats)
		if rate < bestRate {
			bestRate = rate
			summary.Best = r.Workload + "/" + r.Variant
		}
	}

	return summary
}

// CombinedMissRate returns the miss rate over both streams.
func CombinedMissRate(r cache.Report) float64 {
	accesses := r.Instruction.Accesses + r.Data.Accesses
	if accesses == 0 {
		return 0
	}

	return float64(r.Instruction.Misses+r.Data.Misses) / float64(accesses)
}
