package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/okelo/stele/internal/component"
)

// Store backends.
const (
	BackendFS     = "fs"
	BackendMemory = "memory"
	BackendPebble = "pebble"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	DataDir           string   `json:"dataDir" yaml:"dataDir"`
	Backend           string   `json:"backend" yaml:"backend"`
	Fsync             string   `json:"fsync" yaml:"fsync"`
	FsyncInterval     Duration `json:"fsyncInterval" yaml:"fsyncInterval"`
	LogLevel          string   `json:"logLevel" yaml:"logLevel"`
	InlineLimitBytes  int      `json:"inlineLimitBytes" yaml:"inlineLimitBytes"`
	ReductionInterval Duration `json:"reductionInterval" yaml:"reductionInterval"`
	TruncateWorkers   int      `json:"truncateWorkers" yaml:"truncateWorkers"`
	TruncateBudget    Duration `json:"truncateBudget" yaml:"truncateBudget"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		DataDir:           DefaultDataDir(),
		Backend:           BackendFS,
		Fsync:             "always",
		FsyncInterval:     Duration(5 * time.Second),
		LogLevel:          "info",
		InlineLimitBytes:  component.DefaultInlineLimit,
		ReductionInterval: Duration(15 * time.Minute),
		TruncateWorkers:   4,
		TruncateBudget:    Duration(30 * time.Second),
	}
}

// Validate rejects values the runtime cannot act on.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendFS, BackendMemory, BackendPebble:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	switch c.Fsync {
	case "always", "interval", "never":
	default:
		return fmt.Errorf("unknown fsync mode %q", c.Fsync)
	}
	if c.InlineLimitBytes < 0 {
		return fmt.Errorf("inlineLimitBytes must be non-negative")
	}
	if c.TruncateWorkers < 0 {
		return fmt.Errorf("truncateWorkers must be non-negative")
	}
	return nil
}

// Load reads configuration from a JSON or YAML file (by extension),
// overlaying file values onto the defaults. If path is empty, returns
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, err
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Duration marshals as a Go duration string ("15m", "30s") in both JSON
// and YAML.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	return d.UnmarshalText([]byte(value.Value))
}
