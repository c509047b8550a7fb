package rvswd

import (
	"os"

	"github.com/amgspendingspree/pico2-swd-riscv/internal/wire"
	"gopkg.in/yaml.v3"
)

// Config is the immutable-after-create wire configuration (§3): pin
// assignments, requested SWCLK frequency, WAIT-retry count, idle cycles,
// turnaround cycles, and whether the GPR cache is enabled. Frequency may
// be re-set after create through Target.SetFrequency.
type Config struct {
	ClockPin      uint `yaml:"clock_pin"`
	DataPin       uint `yaml:"data_pin"`
	FreqKHz       uint `yaml:"freq_khz"`
	RetryCount    int  `yaml:"retry_count"`
	IdleCycles    int  `yaml:"idle_cycles"`
	TurnaroundLen int  `yaml:"turnaround_len"`
	CacheEnabled  bool `yaml:"cache_enabled"`
}

// DefaultConfig returns the defaults supplied by this implementation.
func DefaultConfig() Config {
	w := wire.DefaultConfig()
	return Config{
		ClockPin:      w.ClockPin,
		DataPin:       w.DataPin,
		FreqKHz:       w.FreqKHz,
		RetryCount:    w.RetryCount,
		IdleCycles:    w.IdleCycles,
		TurnaroundLen: w.TurnaroundLen,
		CacheEnabled:  true,
	}
}

func (c Config) wireConfig() wire.Config {
	return wire.Config{
		ClockPin:      c.ClockPin,
		DataPin:       c.DataPin,
		FreqKHz:       c.FreqKHz,
		RetryCount:    c.RetryCount,
		IdleCycles:    c.IdleCycles,
		TurnaroundLen: c.TurnaroundLen,
	}
}

// LoadConfig reads a Config from a YAML file, starting from DefaultConfig
// so an incomplete file still yields sane values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SaveConfig writes cfg to path as YAML.
func SaveConfig(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
