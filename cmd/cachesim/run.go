package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesim/benchmarks"
	"github.com/sarchlab/cachesim/cache"
	"github.com/sarchlab/cachesim/recording"
	"github.com/sarchlab/cachesim/trace"
)

type runOptions struct {
	strict      bool
	logAccesses bool
	dbPath      string
	record      bool
	cpuProfile  string
}

func newRunCmd(flags *configFlags) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [flags] <trace|->",
		Short: "Simulate one trace and print settings and statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := flags.resolve()
			if err != nil {
				return err
			}

			cmd.SilenceUsage = true

			return runTrace(cmd, config, opts, args[0])
		},
	}

	fs := cmd.Flags()
	fs.BoolVar(&opts.strict, "strict", false,
		"Fail on references with an unknown access kind instead of skipping them")
	fs.BoolVar(&opts.logAccesses, "log-accesses", false, "Log every access to stderr")
	fs.BoolVar(&opts.record, "record", false,
		"Record the result in a SQLite database named after the run ID")
	fs.StringVar(&opts.dbPath, "db", "",
		"Record the result in this SQLite database (without the .sqlite3 suffix)")
	fs.StringVar(&opts.cpuProfile, "cpuprofile", "", "Write CPU profile to file")

	return cmd
}

func runTrace(
	cmd *cobra.Command,
	config cache.Config,
	opts *runOptions,
	path string,
) error {
	stopProfile, err := startCPUProfile(opts.cpuProfile)
	if err != nil {
		return err
	}
	defer stopProfile()

	var simOpts []cache.Option
	if opts.strict {
		simOpts = append(simOpts, cache.WithStrictAccessKinds())
	}

	if opts.logAccesses {
		logger := log.New(cmd.ErrOrStderr(), "", 0)
		simOpts = append(simOpts, cache.WithHook(trace.NewLogHook(logger)))
	}

	s, err := cache.NewSimulator(config, simOpts...)
	if err != nil {
		return err
	}

	src, closeSrc, err := openTrace(path)
	if err != nil {
		return err
	}
	defer closeSrc()

	start := time.Now()
	counter := &countingSource{src: src}

	if err := s.Run(cmd.Context(), counter); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	s.Flush()

	out := cmd.OutOrStdout()
	config.WriteSettings(out)
	_, _ = fmt.Fprintln(out)
	s.Stats().WriteStats(out)

	if !opts.record && opts.dbPath == "" {
		return nil
	}

	return recordRun(cmd, opts.dbPath, benchmarks.Result{
		Variant:  benchmarks.VariantName(config),
		Workload: filepath.Base(path),
		Config:   config,
		Events:   counter.n,
		Stats:    s.Stats(),
		WallTime: time.Since(start),
	})
}

// countingSource counts the events read from src.
type countingSource struct {
	src cache.EventSource
	n   int
}

func (c *countingSource) Next() (cache.Event, error) {
	evt, err := c.src.Next()
	if err == nil {
		c.n++
	}

	return evt, err
}

func openTrace(path string) (cache.EventSource, func(), error) {
	if path == "-" {
		return trace.NewReader(os.Stdin), func() {}, nil
	}

	f, err := trace.Open(path)
	if err != nil {
		return nil, nil, err
	}

	return f, func() { _ = f.Close() }, nil
}

func recordRun(cmd *cobra.Command, dbPath string, result benchmarks.Result) error {
	r, err := recording.NewSQLiteRecorder(dbPath)
	if err != nil {
		return err
	}

	if err := r.Record(result); err != nil {
		_ = r.Close()
		return err
	}

	if err := r.Close(); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Result recorded in %s (run %s)\n",
		r.FileName(), r.RunID())

	return nil
}
