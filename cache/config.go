package cache

import (
	"encoding/json"
	"fmt"
	"os"
)

// Default parameters.
const (
	DefaultSize          = 8 * 1024
	DefaultBlockSize     = 16
	DefaultAssociativity = 1
)

// Config holds the cache organization and write policy.
type Config struct {
	// BlockSize in bytes (cache line size)
	BlockSize int `json:"block_size"`
	// Associativity (number of ways)
	Associativity int `json:"associativity"`

	// Split selects separate instruction and data banks.
	Split bool `json:"split"`
	// UnifiedSize in bytes, used when Split is false
	UnifiedSize int `json:"unified_size"`
	// InstructionSize in bytes, used when Split is true
	InstructionSize int `json:"instruction_size"`
	// DataSize in bytes, used when Split is true. 0 means no data bank.
	DataSize int `json:"data_size"`

	// WriteBack defers memory updates to eviction; otherwise write-through.
	WriteBack bool `json:"write_back"`
	// WriteAllocate fills a line on a store miss; otherwise the store
	// bypasses the cache.
	WriteAllocate bool `json:"write_allocate"`
}

// DefaultConfig returns an 8KB direct-mapped unified write-back,
// write-allocate cache with 16B blocks.
func DefaultConfig() Config {
	return Config{
		BlockSize:       DefaultBlockSize,
		Associativity:   DefaultAssociativity,
		UnifiedSize:     DefaultSize,
		InstructionSize: DefaultSize,
		DataSize:        DefaultSize,
		WriteBack:       true,
		WriteAllocate:   true,
	}
}

// Param selects one configuration parameter for Config.Set.
type Param int

// Parameter selectors.
const (
	ParamBlockSize Param = iota
	ParamUnifiedSize
	ParamInstructionSize
	ParamDataSize
	ParamAssociativity
	ParamWriteBack
	ParamWriteThrough
	ParamWriteAllocate
	ParamNoWriteAllocate
)

var paramNames = map[Param]string{
	ParamBlockSize:       "block-size",
	ParamUnifiedSize:     "unified-size",
	ParamInstructionSize: "instruction-size",
	ParamDataSize:        "data-size",
	ParamAssociativity:   "associativity",
	ParamWriteBack:       "write-back",
	ParamWriteThrough:    "write-through",
	ParamWriteAllocate:   "write-allocate",
	ParamNoWriteAllocate: "no-write-allocate",
}

func (p Param) String() string {
	if name, ok := paramNames[p]; ok {
		return name
	}

	return fmt.Sprintf("param(%d)", int(p))
}

// Set changes one parameter. Setting a unified size switches to a unified
// cache; setting an instruction or data size switches to a split cache.
// The policy selectors ignore value.
func (c *Config) Set(p Param, value int) error {
	switch p {
	case ParamBlockSize:
		c.BlockSize = value
	case ParamUnifiedSize:
		c.Split = false
		c.UnifiedSize = value
	case ParamInstructionSize:
		c.Split = true
		c.InstructionSize = value
	case ParamDataSize:
		c.Split = true
		c.DataSize = value
	case ParamAssociativity:
		c.Associativity = value
	case ParamWriteBack:
		c.WriteBack = true
	case ParamWriteThrough:
		c.WriteBack = false
	case ParamWriteAllocate:
		c.WriteAllocate = true
	case ParamNoWriteAllocate:
		c.WriteAllocate = false
	default:
		return fmt.Errorf("%w: %v", ErrUnknownParam, p)
	}

	return nil
}

// Validate checks that every bank the configuration describes has a
// power-of-two block size and set count.
func (c Config) Validate() error {
	if !isPowerOfTwo(c.BlockSize) || c.BlockSize < WordSize {
		return fmt.Errorf(
			"%w: block size %d must be a power of two of at least %d bytes",
			ErrInvalidGeometry, c.BlockSize, WordSize)
	}

	if c.Associativity <= 0 {
		return fmt.Errorf("%w: associativity must be > 0", ErrInvalidGeometry)
	}

	if !c.Split {
		return c.validateBank("unified", c.UnifiedSize)
	}

	if c.InstructionSize == 0 && c.DataSize == 0 {
		return fmt.Errorf("%w: split cache needs an instruction or data size",
			ErrInvalidGeometry)
	}

	if c.InstructionSize != 0 {
		if err := c.validateBank("instruction", c.InstructionSize); err != nil {
			return err
		}
	}

	if c.DataSize != 0 {
		if err := c.validateBank("data", c.DataSize); err != nil {
			return err
		}
	}

	return nil
}

func (c Config) validateBank(name string, size int) error {
	if _, err := setCount(size, c.BlockSize, c.Associativity); err != nil {
		return fmt.Errorf("%s cache: %w", name, err)
	}

	return nil
}

// WordsPerBlock returns the number of words moved per block transfer.
func (c Config) WordsPerBlock() uint64 {
	return uint64(c.BlockSize / WordSize)
}

// LoadConfig loads a Config from a JSON file. Fields missing from the file
// keep their default values.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if err := config.LoadFrom(path); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadFrom overlays the fields present in a JSON file onto c.
func (c *Config) LoadFrom(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read cache config file: %w", err)
	}

	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse cache config: %w", err)
	}

	return nil
}

// SaveConfig writes the Config to a JSON file.
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize cache config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache config file: %w", err)
	}

	return nil
}
