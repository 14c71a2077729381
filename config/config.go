// Package config loads the access layer's configuration: a yaml file
// overlaid with ACCESS_* environment variables. Everything has a working
// default so the zero configuration is usable against a lab chassis.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/nanoncore/nano-access/discovery"
)

type Config struct {
	Pool    PoolConfig    `yaml:"pool"`
	CLI     CLIConfig     `yaml:"cli"`
	SNMP    SNMPConfig    `yaml:"snmp"`
	Locator LocatorConfig `yaml:"locator"`
}

type PoolConfig struct {
	MaxConnections       int `yaml:"max_connections" envconfig:"MAX_CONNECTIONS"`
	IdleTimeoutSeconds   int `yaml:"idle_timeout_seconds" envconfig:"IDLE_TIMEOUT_SECONDS"`
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds" envconfig:"SWEEP_INTERVAL_SECONDS"`
}

func (c PoolConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSeconds) * time.Second
}

func (c PoolConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

type CLIConfig struct {
	LoginTimeoutSeconds   int `yaml:"login_timeout_seconds" envconfig:"LOGIN_TIMEOUT_SECONDS"`
	EnableTimeoutSeconds  int `yaml:"enable_timeout_seconds" envconfig:"ENABLE_TIMEOUT_SECONDS"`
	CommandTimeoutSeconds int `yaml:"command_timeout_seconds" envconfig:"COMMAND_TIMEOUT_SECONDS"`
	SettleDelayMS         int `yaml:"settle_delay_ms" envconfig:"SETTLE_DELAY_MS"`
	MaxOutputBytes        int `yaml:"max_output_bytes" envconfig:"MAX_OUTPUT_BYTES"`
}

func (c CLIConfig) LoginTimeout() time.Duration {
	return time.Duration(c.LoginTimeoutSeconds) * time.Second
}

func (c CLIConfig) EnableTimeout() time.Duration {
	return time.Duration(c.EnableTimeoutSeconds) * time.Second
}

func (c CLIConfig) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutSeconds) * time.Second
}

func (c CLIConfig) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMS) * time.Millisecond
}

type SNMPConfig struct {
	Community      string `yaml:"community" envconfig:"COMMUNITY"`
	Port           int    `yaml:"port" envconfig:"PORT"`
	Version        string `yaml:"version" envconfig:"VERSION"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"TIMEOUT_SECONDS"`
	Retries        int    `yaml:"retries" envconfig:"RETRIES"`
	MaxRepetitions int    `yaml:"max_repetitions" envconfig:"MAX_REPETITIONS"`
}

func (c SNMPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type LocatorConfig struct {
	// Ranges are the ifIndex intervals scanned during ONU discovery, in
	// priority order. Empirical per chassis family; override for hardware
	// that lays its ONU indexes out differently.
	Ranges []discovery.Range `yaml:"ranges"`
}

// Default returns the built-in configuration: pool of 10 with a 5 minute
// idle timeout and 30s sweep, 30s command timeout, SNMP v2c on 161, and the
// discovery ranges known for the BDCOM EPON family.
func Default() *Config {
	return &Config{
		Pool: PoolConfig{
			MaxConnections:       10,
			IdleTimeoutSeconds:   300,
			SweepIntervalSeconds: 30,
		},
		CLI: CLIConfig{
			LoginTimeoutSeconds:   10,
			EnableTimeoutSeconds:  5,
			CommandTimeoutSeconds: 30,
			SettleDelayMS:         0,
			MaxOutputBytes:        10240,
		},
		SNMP: SNMPConfig{
			Community:      "public",
			Port:           161,
			Version:        "2c",
			TimeoutSeconds: 5,
			Retries:        1,
			MaxRepetitions: 20,
		},
		Locator: LocatorConfig{
			Ranges: []discovery.Range{
				{Start: 200, End: 327},
				{Start: 1000, End: 1127},
				{Start: 3000, End: 3127},
			},
		},
	}
}

// Load builds the configuration: defaults, then the yaml file at path (if
// non-empty), then ACCESS_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process("access", cfg); err != nil {
		return nil, fmt.Errorf("apply environment overrides: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Pool.MaxConnections <= 0 {
		return fmt.Errorf("pool.max_connections must be positive, got %d", c.Pool.MaxConnections)
	}
	if c.SNMP.Version != "1" && c.SNMP.Version != "2c" {
		return fmt.Errorf("snmp.version must be \"1\" or \"2c\", got %q", c.SNMP.Version)
	}
	if c.SNMP.Port <= 0 || c.SNMP.Port > 65535 {
		return fmt.Errorf("snmp.port out of range: %d", c.SNMP.Port)
	}
	for _, r := range c.Locator.Ranges {
		if r.Start <= 0 || r.End < r.Start {
			return fmt.Errorf("locator range [%d, %d] is not a valid interval", r.Start, r.End)
		}
	}
	return nil
}
