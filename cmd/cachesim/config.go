package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/sarchlab/cachesim/cache"
)

// configFlags holds the cache configuration flags shared by every
// subcommand.
type configFlags struct {
	envFile    string
	configPath string

	// settings collects the classic flags in command-line order.
	settings []paramSetting
}

type paramSetting struct {
	param cache.Param
	value int
}

// paramFlag is an integer flag that records every occurrence.
type paramFlag struct {
	param    cache.Param
	value    int
	settings *[]paramSetting
}

func (p *paramFlag) String() string {
	return strconv.Itoa(p.value)
}

func (p *paramFlag) Set(s string) error {
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}

	p.value = v
	*p.settings = append(*p.settings, paramSetting{param: p.param, value: v})

	return nil
}

func (p *paramFlag) Type() string {
	return "int"
}

// policyFlag is a switch that records every occurrence set to true.
type policyFlag struct {
	param    cache.Param
	set      bool
	settings *[]paramSetting
}

func (p *policyFlag) String() string {
	return strconv.FormatBool(p.set)
}

func (p *policyFlag) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}

	p.set = v
	if v {
		*p.settings = append(*p.settings, paramSetting{param: p.param})
	}

	return nil
}

func (p *policyFlag) Type() string {
	return "bool"
}

func (f *configFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.envFile, "env-file", "",
		"Environment file with CACHESIM_* defaults (default .env if present)")
	fs.StringVar(&f.configPath, "config", "", "Path to cache configuration JSON file")

	sizes := []struct {
		name  string
		param cache.Param
		def   int
		usage string
	}{
		{"bs", cache.ParamBlockSize, cache.DefaultBlockSize, "Block size in bytes"},
		{"us", cache.ParamUnifiedSize, cache.DefaultSize,
			"Unified cache size in bytes (selects a unified cache)"},
		{"is", cache.ParamInstructionSize, cache.DefaultSize,
			"Instruction cache size in bytes (selects a split cache)"},
		{"ds", cache.ParamDataSize, cache.DefaultSize,
			"Data cache size in bytes (selects a split cache)"},
		{"a", cache.ParamAssociativity, cache.DefaultAssociativity, "Associativity"},
	}
	for _, s := range sizes {
		fs.Var(&paramFlag{param: s.param, value: s.def, settings: &f.settings},
			s.name, s.usage)
	}

	policies := []struct {
		name  string
		param cache.Param
		usage string
	}{
		{"wb", cache.ParamWriteBack, "Write back"},
		{"wt", cache.ParamWriteThrough, "Write through"},
		{"wa", cache.ParamWriteAllocate, "Write allocate"},
		{"nw", cache.ParamNoWriteAllocate, "No write allocate"},
	}
	for _, p := range policies {
		flag := fs.VarPF(&policyFlag{param: p.param, settings: &f.settings},
			p.name, "", p.usage)
		flag.NoOptDefVal = "true"
	}
}

// resolve builds the configuration from defaults, then CACHESIM_*
// environment variables, then the --config file, then the classic flags in
// the order they were given. The last of --us and --is/--ds picks the cache
// organization; the last of --wb/--wt and of --wa/--nw wins.
func (f *configFlags) resolve() (cache.Config, error) {
	config := cache.DefaultConfig()

	if err := applyEnv(&config); err != nil {
		return config, err
	}

	if f.configPath != "" {
		if err := config.LoadFrom(f.configPath); err != nil {
			return config, err
		}
	}

	for _, s := range f.settings {
		if err := config.Set(s.param, s.value); err != nil {
			return config, err
		}
	}

	if err := config.Validate(); err != nil {
		return config, err
	}

	return config, nil
}

var envSizes = []struct {
	key   string
	param cache.Param
}{
	{"CACHESIM_BLOCK_SIZE", cache.ParamBlockSize},
	{"CACHESIM_UNIFIED_SIZE", cache.ParamUnifiedSize},
	{"CACHESIM_INSTRUCTION_SIZE", cache.ParamInstructionSize},
	{"CACHESIM_DATA_SIZE", cache.ParamDataSize},
	{"CACHESIM_ASSOCIATIVITY", cache.ParamAssociativity},
}

// applyEnv applies the CACHESIM_* variables that are set.
// CACHESIM_WRITE_POLICY takes "back" or "through";
// CACHESIM_ALLOCATE_POLICY takes "allocate" or "no-allocate".
func applyEnv(config *cache.Config) error {
	for _, e := range envSizes {
		raw, ok := os.LookupEnv(e.key)
		if !ok {
			continue
		}

		value, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", e.key, raw, err)
		}

		if err := config.Set(e.param, value); err != nil {
			return err
		}
	}

	if raw, ok := os.LookupEnv("CACHESIM_WRITE_POLICY"); ok {
		switch raw {
		case "back":
			config.WriteBack = true
		case "through":
			config.WriteBack = false
		default:
			return fmt.Errorf("invalid CACHESIM_WRITE_POLICY %q", raw)
		}
	}

	if raw, ok := os.LookupEnv("CACHESIM_ALLOCATE_POLICY"); ok {
		switch raw {
		case "allocate":
			config.WriteAllocate = true
		case "no-allocate":
			config.WriteAllocate = false
		default:
			return fmt.Errorf("invalid CACHESIM_ALLOCATE_POLICY %q", raw)
		}
	}

	return nil
}
