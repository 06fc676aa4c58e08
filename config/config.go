// Package config handles the bench file listing the LNHR DAC II instruments of a setup.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BASPI/LNHRDACII-tools/lnhrdac"
	"github.com/BASPI/LNHRDACII-tools/logger"
)

// Config holds the complete bench configuration.
type Config struct {
	LogLevel string         `yaml:"log_level,omitempty"`
	Devices  []DeviceConfig `yaml:"devices"`
}

// DeviceConfig describes one instrument. Zero durations keep the driver defaults.
type DeviceConfig struct {
	Name string `yaml:"name"`
	Host string `yaml:"host"`
	Port int    `yaml:"port,omitempty"` // defaults to lnhrdac.DefaultPort

	ConnectTimeout time.Duration `yaml:"connect_timeout,omitempty"`
	ReadTimeout    time.Duration `yaml:"read_timeout,omitempty"`
	WriteTimeout   time.Duration `yaml:"write_timeout,omitempty"`

	ControlDelay     time.Duration `yaml:"control_delay,omitempty"`
	MemoryWriteDelay time.Duration `yaml:"memory_write_delay,omitempty"`
	ReleaseDelay     time.Duration `yaml:"release_delay,omitempty"`
}

// DefaultPath returns the default bench file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".lnhrdac", "config.yaml")
}

// Load reads the bench file at path. A missing file yields an empty configuration.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the configuration to path, creating the directory if needed.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks the log level and that every device has a unique name and a usable configuration.
func (c *Config) Validate() error {
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(c.Devices))
	for i := range c.Devices {
		dev := &c.Devices[i]
		if dev.Name == "" {
			return fmt.Errorf("device #%d: name is required", i+1)
		}

		key := strings.ToLower(dev.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("device %q: duplicate name", dev.Name)
		}
		seen[key] = struct{}{}

		if _, err := dev.LnhrdacConfig(); err != nil {
			return fmt.Errorf("device %q: %w", dev.Name, err)
		}
	}

	return nil
}

// Find returns the device with the given name (case-insensitive), or nil if not found.
func (c *Config) Find(name string) *DeviceConfig {
	for i := range c.Devices {
		if strings.EqualFold(c.Devices[i].Name, name) {
			return &c.Devices[i]
		}
	}
	return nil
}

// Names returns the device names in file order.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Devices))
	for _, dev := range c.Devices {
		names = append(names, dev.Name)
	}
	return names
}

// Options maps the non-zero fields to driver options.
func (d *DeviceConfig) Options() []lnhrdac.Option {
	opts := []lnhrdac.Option{lnhrdac.WithName(d.Name)}

	if d.ConnectTimeout != 0 {
		opts = append(opts, lnhrdac.WithConnectTimeout(d.ConnectTimeout))
	}
	if d.ReadTimeout != 0 {
		opts = append(opts, lnhrdac.WithReadTimeout(d.ReadTimeout))
	}
	if d.WriteTimeout != 0 {
		opts = append(opts, lnhrdac.WithWriteTimeout(d.WriteTimeout))
	}
	if d.ControlDelay != 0 {
		opts = append(opts, lnhrdac.WithControlDelay(d.ControlDelay))
	}
	if d.MemoryWriteDelay != 0 {
		opts = append(opts, lnhrdac.WithMemoryWriteDelay(d.MemoryWriteDelay))
	}
	if d.ReleaseDelay != 0 {
		opts = append(opts, lnhrdac.WithReleaseDelay(d.ReleaseDelay))
	}

	return opts
}

// LnhrdacConfig builds the driver configuration. Extra options are applied last.
func (d *DeviceConfig) LnhrdacConfig(extra ...lnhrdac.Option) (*lnhrdac.Config, error) {
	port := d.Port
	if port == 0 {
		port = lnhrdac.DefaultPort
	}

	return lnhrdac.NewConfig(d.Host, port, append(d.Options(), extra...)...)
}
