// Package config loads leapformula configuration.
//
// Values are layered with koanf, lowest priority first: built-in defaults,
// the leapformula.yaml config file, LEAPFORMULA_* environment variables
// and finally command-line flags that were explicitly set.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/leapstack-labs/leapformula/pkg/registry"
)

// Default configuration values.
const (
	DefaultStateFile = ".leapformula/state.db"
	DefaultMaxDepth  = 128
	DefaultWorkers   = 4
	DefaultTimezone  = "UTC"
	DefaultOutput    = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultLogLevel  = "warn"
	DefaultLogFormat = "text"
	DefaultDebounce  = 200 * time.Millisecond
)

// Config file names, in lookup order.
const (
	ConfigFileName    = "leapformula.yaml"
	ConfigFileNameAlt = "leapformula.yml"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "LEAPFORMULA_"

// Config holds all leapformula configuration options.
type Config struct {
	Workbook          string      `koanf:"workbook"`
	StatePath         string      `koanf:"state_path"`
	MaxDepth          int         `koanf:"max_depth"`
	Workers           int         `koanf:"workers"`
	Timezone          string      `koanf:"timezone"`
	OutputFormat      string      `koanf:"output"`
	LogLevel          string      `koanf:"log_level"`
	LogFormat         string      `koanf:"log_format"`
	Verbose           bool        `koanf:"verbose"`
	DisabledFunctions []string    `koanf:"disabled_functions"`
	Watch             WatchConfig `koanf:"watch"`

	// ConfigFile is the config file that was loaded, if any.
	ConfigFile string `koanf:"-"`
	// ProjectRoot anchors relative paths read from the config file.
	ProjectRoot string `koanf:"-"`
}

// WatchConfig holds settings of the watch command.
type WatchConfig struct {
	Debounce time.Duration `koanf:"debounce"`
}

// Default returns a Config holding only default values.
func Default() *Config {
	return &Config{
		StatePath:    DefaultStateFile,
		MaxDepth:     DefaultMaxDepth,
		Workers:      DefaultWorkers,
		Timezone:     DefaultTimezone,
		OutputFormat: DefaultOutput,
		LogLevel:     DefaultLogLevel,
		LogFormat:    DefaultLogFormat,
		Watch:        WatchConfig{Debounce: DefaultDebounce},
	}
}

// defaults is the lowest configuration layer.
func defaults() map[string]any {
	return map[string]any{
		"state_path":         DefaultStateFile,
		"max_depth":          DefaultMaxDepth,
		"workers":            DefaultWorkers,
		"timezone":           DefaultTimezone,
		"output":             DefaultOutput,
		"log_level":          DefaultLogLevel,
		"log_format":         DefaultLogFormat,
		"verbose":            false,
		"disabled_functions": []string{},
		"watch.debounce":     DefaultDebounce.String(),
	}
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Registry returns the built-in functions minus DisabledFunctions.
func (c *Config) Registry() (*registry.Registry, error) {
	if len(c.DisabledFunctions) == 0 {
		return registry.Default(), nil
	}

	base := registry.Default()
	skip := make(map[*registry.Function]bool, len(c.DisabledFunctions))
	for _, name := range c.DisabledFunctions {
		fn, ok := base.Lookup(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("disabled_functions: unknown function %q", name)
		}
		skip[fn] = true
	}

	var keep []*registry.Function
	for _, fn := range base.Functions() {
		if !skip[fn] {
			keep = append(keep, fn)
		}
	}
	return registry.New(keep...)
}
