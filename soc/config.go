package soc

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/ahbsim/bus"
	"github.com/sarchlab/ahbsim/bus/stages"
)

// MemoryConfig places a memory in the address space.
type MemoryConfig struct {
	Base       uint32 `yaml:"base"`
	Size       uint64 `yaml:"size"`
	WaitStates int    `yaml:"wait_states"`
}

// Range returns the address range of the memory.
func (c MemoryConfig) Range() bus.Range {
	return bus.Range{Start: bus.Address(c.Base), Size: c.Size}
}

// Config describes a SoC.
type Config struct {
	FreqMHz uint64 `yaml:"freq_mhz"`

	Flash          MemoryConfig `yaml:"flash"`
	FlashAlias     uint32       `yaml:"flash_alias"`
	FlashLineBytes uint32       `yaml:"flash_line_bytes"`
	LineBuffer     bool         `yaml:"line_buffer"`

	SRAM            MemoryConfig `yaml:"sram"`
	SRAMWritePolicy string       `yaml:"sram_write_policy"`

	ROM      MemoryConfig `yaml:"rom"`
	GPRAM    MemoryConfig `yaml:"gpram"`
	CacheRAM MemoryConfig `yaml:"cache_ram"`

	PPBBase     uint32 `yaml:"ppb_base"`
	PPBSize     uint64 `yaml:"ppb_size"`
	SysTickBase uint32 `yaml:"systick_base"`

	// Arbitration is "round_robin" or "fixed". Fixed priority follows the
	// order Sys, Code, DMA.
	Arbitration string `yaml:"arbitration"`

	VerifySkips bool `yaml:"verify_skips"`
}

// DefaultConfig returns the configuration of the reference part.
func DefaultConfig() Config {
	return Config{
		FreqMHz: 50,

		Flash:          MemoryConfig{Base: 0x0800_0000, Size: 256 << 10, WaitStates: 2},
		FlashAlias:     0x0000_0000,
		FlashLineBytes: 16,
		LineBuffer:     true,

		SRAM:            MemoryConfig{Base: 0x2000_0000, Size: 64 << 10, WaitStates: 1},
		SRAMWritePolicy: "fast",

		ROM:      MemoryConfig{Base: 0x1fff_0000, Size: 32 << 10, WaitStates: 1},
		GPRAM:    MemoryConfig{Base: 0x2010_0000, Size: 16 << 10},
		CacheRAM: MemoryConfig{Base: 0x2010_0000, Size: 16 << 10},

		PPBBase:     0xe000_0000,
		PPBSize:     1 << 20,
		SysTickBase: 0xe000_e010,

		Arbitration: "round_robin",
	}
}

// LoadConfig reads a YAML configuration. Fields the file leaves out keep
// their default value.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "reading config %s", path)
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing config %s", path)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrapf(err, "config %s", path)
	}

	return cfg, nil
}

// Validate checks the fields that the address map does not.
func (c Config) Validate() error {
	if c.FreqMHz == 0 {
		return errors.New("freq_mhz must be positive")
	}

	if _, ok := bus.SizeOf(c.FlashLineBytes); !ok {
		return errors.Errorf("flash_line_bytes %d is not a transfer size",
			c.FlashLineBytes)
	}

	if _, err := c.writePolicy(); err != nil {
		return err
	}

	if c.Arbitration != "round_robin" && c.Arbitration != "fixed" {
		return errors.Errorf("unknown arbitration %q", c.Arbitration)
	}

	if c.GPRAM.Range() != c.CacheRAM.Range() {
		return errors.New("gpram and cache_ram must share one window")
	}

	ppb := bus.Range{Start: bus.Address(c.PPBBase), Size: c.PPBSize}
	if !ppb.Contains(bus.Address(c.SysTickBase)) {
		return errors.Errorf("systick_base 0x%08x is outside the PPB",
			c.SysTickBase)
	}

	return nil
}

func (c Config) writePolicy() (stages.WritePolicy, error) {
	switch c.SRAMWritePolicy {
	case "fast":
		return stages.Fast, nil
	case "conservative":
		return stages.Conservative, nil
	default:
		return 0, errors.Errorf("unknown sram_write_policy %q",
			c.SRAMWritePolicy)
	}
}

func (c Config) lineSize() bus.Size {
	s, _ := bus.SizeOf(c.FlashLineBytes)
	return s
}
