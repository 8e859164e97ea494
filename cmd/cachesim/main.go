// Package main provides the entry point for cachesim, a trace-driven
// set-associative cache simulator.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/tebeka/atexit"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)

	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
