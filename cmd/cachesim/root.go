package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime/pprof"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	flags := &configFlags{}

	root := &cobra.Command{
		Use:   "cachesim",
		Short: "Trace-driven set-associative cache simulator.",
		Long: `cachesim replays a trace of memory references through a ` +
			`configurable cache and reports hit, miss and memory traffic ` +
			`statistics for the instruction and data streams.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadEnvFile(flags.envFile)
		},
	}

	flags.register(root.PersistentFlags())

	root.AddCommand(
		newRunCmd(flags),
		newSweepCmd(flags),
		newSettingsCmd(flags),
	)

	return root
}

// loadEnvFile loads path into the environment. The default .env file is
// optional; an explicitly named file must exist.
func loadEnvFile(path string) error {
	if path == "" {
		err := godotenv.Load()
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}

		return nil
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}

	return nil
}

// startCPUProfile starts profiling into path and returns the function that
// stops it. An empty path does nothing.
func startCPUProfile(path string) (func(), error) {
	if path == "" {
		return func() {}, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create CPU profile: %w", err)
	}

	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to start CPU profile: %w", err)
	}

	return func() {
		pprof.StopCPUProfile()
		_ = f.Close()
	}, nil
}
