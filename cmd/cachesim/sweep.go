package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesim/benchmarks"
	"github.com/sarchlab/cachesim/cache"
	"github.com/sarchlab/cachesim/recording"
)

type sweepOptions struct {
	sizes        []int
	assocs       []int
	blockSizes   []int
	bothWrite    bool
	bothAllocate bool

	traces    []string
	workloads []string

	format     string
	strict     bool
	verbose    bool
	record     bool
	dbPath     string
	cpuProfile string
}

func newSweepCmd(flags *configFlags) *cobra.Command {
	opts := &sweepOptions{}

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a grid of cache configurations over workloads",
		Long: `Sweep expands the size, associativity and block-size grids ` +
			`around the base configuration and runs every valid combination ` +
			`over the synthetic workloads or the given trace files.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			base, err := flags.resolve()
			if err != nil {
				return err
			}

			cmd.SilenceUsage = true

			return runSweep(cmd, base, opts)
		},
	}

	fs := cmd.Flags()
	fs.IntSliceVar(&opts.sizes, "sizes", nil, "Cache sizes in bytes to sweep")
	fs.IntSliceVar(&opts.assocs, "assocs", []int{1, 2, 4, 8}, "Associativities to sweep")
	fs.IntSliceVar(&opts.blockSizes, "block-sizes", nil, "Block sizes in bytes to sweep")
	fs.BoolVar(&opts.bothWrite, "both-write-policies", false,
		"Sweep write-back and write-through")
	fs.BoolVar(&opts.bothAllocate, "both-allocate-policies", false,
		"Sweep write-allocate and no-write-allocate")
	fs.StringSliceVar(&opts.traces, "trace", nil,
		"Trace files to run instead of the synthetic workloads")
	fs.StringSliceVar(&opts.workloads, "workload", nil,
		"Synthetic workloads to run (default all)")
	fs.StringVar(&opts.format, "format", "text", "Output format: text, csv or json")
	fs.BoolVar(&opts.strict, "strict", false,
		"Fail on references with an unknown access kind")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "Print progress to stderr")
	fs.BoolVar(&opts.record, "record", false,
		"Record results in a SQLite database named after the run ID")
	fs.StringVar(&opts.dbPath, "db", "",
		"Record results in this SQLite database (without the .sqlite3 suffix)")
	fs.StringVar(&opts.cpuProfile, "cpuprofile", "", "Write CPU profile to file")

	return cmd
}

func runSweep(cmd *cobra.Command, base cache.Config, opts *sweepOptions) error {
	switch opts.format {
	case "text", "csv", "json":
	default:
		return fmt.Errorf("unknown format %q", opts.format)
	}

	workloads, err := selectWorkloads(opts)
	if err != nil {
		return err
	}

	grid := benchmarks.Grid{
		Sizes:         opts.sizes,
		Associativity: opts.assocs,
		BlockSizes:    opts.blockSizes,
	}
	if opts.bothWrite {
		grid.WritePolicies = []bool{true, false}
	}
	if opts.bothAllocate {
		grid.AllocatePolicy = []bool{true, false}
	}

	variants := grid.Expand(base)
	if len(variants) == 0 {
		return fmt.Errorf("%w: no valid configuration in the sweep grid",
			cache.ErrInvalidGeometry)
	}

	stopProfile, err := startCPUProfile(opts.cpuProfile)
	if err != nil {
		return err
	}
	defer stopProfile()

	config := benchmarks.HarnessConfig{
		Output:  cmd.OutOrStdout(),
		Strict:  opts.strict,
		Verbose: opts.verbose,
	}

	var recorder *recording.SQLiteRecorder
	if opts.record || opts.dbPath != "" {
		recorder, err = recording.NewSQLiteRecorder(opts.dbPath)
		if err != nil {
			return err
		}
		defer func() { _ = recorder.Close() }()

		config.Recorder = recorder
	}

	harness := benchmarks.NewHarness(config)
	harness.AddVariants(variants)
	harness.AddWorkloads(workloads)

	results, err := harness.RunAll(cmd.Context())
	if err != nil {
		return err
	}

	switch opts.format {
	case "csv":
		harness.PrintCSV(results)
	case "json":
		if err := harness.PrintJSON(results); err != nil {
			return err
		}
	default:
		harness.PrintResults(results)
	}

	if recorder != nil {
		if err := recorder.Flush(); err != nil {
			return err
		}

		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Results recorded in %s (run %s)\n",
			recorder.FileName(), recorder.RunID())
	}

	return nil
}

func selectWorkloads(opts *sweepOptions) ([]benchmarks.Workload, error) {
	if len(opts.traces) > 0 {
		workloads := make([]benchmarks.Workload, 0, len(opts.traces))
		for _, path := range opts.traces {
			workloads = append(workloads, benchmarks.FileWorkload(filepath.Base(path), path))
		}

		return workloads, nil
	}

	all := benchmarks.GetWorkloads()
	if len(opts.workloads) == 0 {
		return all, nil
	}

	byName := make(map[string]benchmarks.Workload, len(all))
	for _, w := range all {
		byName[w.Name] = w
	}

	workloads := make([]benchmarks.Workload, 0, len(opts.workloads))
	for _, name := range opts.workloads {
		w, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown workload %q (have %s)", name, workloadNames(all))
		}

		workloads = append(workloads, w)
	}

	return workloads, nil
}

func workloadNames(ws []benchmarks.Workload) string {
	names := make([]string, 0, len(ws))
	for _, w := range ws {
		names = append(names, w.Name)
	}

	return strings.Join(names, ", ")
}
