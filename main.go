// Package main provides the entry point for cachesim.
// cachesim is a trace-driven set-associative cache simulator built on Akita.
//
// For the full CLI, use: go run ./cmd/cachesim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("cachesim - set-associative cache simulator")
	fmt.Println("Built on Akita simulation framework")
	fmt.Println("")
	fmt.Println("Usage: cachesim <command> [options]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  run <trace>  Simulate one trace and print statistics")
	fmt.Println("  sweep        Run a grid of configurations over workloads")
	fmt.Println("  settings     Print the resolved configuration")
	fmt.Println("")
	fmt.Println("Cache options:")
	fmt.Println("  --bs <size>  Block size (default 16)")
	fmt.Println("  --us <size>  Unified cache size (default 8192)")
	fmt.Println("  --is <size>  Instruction cache size (split cache)")
	fmt.Println("  --ds <size>  Data cache size (split cache)")
	fmt.Println("  --a <n>      Associativity (default 1)")
	fmt.Println("  --wb --wt    Write back / write through")
	fmt.Println("  --wa --nw    Write allocate / no write allocate")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/cachesim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/cachesim' instead.")
	}
}
