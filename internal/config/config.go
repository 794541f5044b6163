// Package config holds the run configuration resolved from flags,
// environment, and an optional config file.
package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/viper"
)

// Defaults mirror the classic RunPod batch driver: refmodel.jpg as the
// reference, "_swapped" output suffix, and a 5 minute per-job timeout.
const (
	DefaultReferenceName = "refmodel.jpg"
	DefaultOutputSuffix  = "_swapped"
	DefaultJobTimeout    = 5 * time.Minute
	DefaultConcurrency   = 1

	// Minimum acceptable reference resolution.
	MinReferenceWidth  = 100
	MinReferenceHeight = 100
)

// Config is the fully resolved run configuration.
type Config struct {
	InputDir  string `mapstructure:"input_dir"`
	OutputDir string `mapstructure:"output_dir"`

	ReferenceName string `mapstructure:"reference_name"`
	OutputSuffix  string `mapstructure:"output_suffix"`

	Concurrency   int           `mapstructure:"concurrency"`
	JobTimeout    time.Duration `mapstructure:"job_timeout"`
	RetryTimeouts int           `mapstructure:"retry_timeouts"`

	EngineCommand string   `mapstructure:"engine_command"`
	EngineArgs    []string `mapstructure:"engine_args"`
	EngineWorkDir string   `mapstructure:"engine_workdir"`

	MetricsListen string `mapstructure:"metrics_listen"`

	LogJSON bool `mapstructure:"log_json"`
	Verbose bool `mapstructure:"verbose"`
}

// SetDefaults registers defaults on a viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("reference_name", DefaultReferenceName)
	v.SetDefault("output_suffix", DefaultOutputSuffix)
	v.SetDefault("concurrency", DefaultConcurrency)
	v.SetDefault("job_timeout", DefaultJobTimeout)
	v.SetDefault("retry_timeouts", 0)
	v.SetDefault("engine_command", "facefusion")
	v.SetDefault("log_json", false)
	v.SetDefault("verbose", false)
}

// FromViper unmarshals the resolved viper state into a Config.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration before a run starts.
func (c *Config) Validate() error {
	if c.InputDir == "" {
		return fmt.Errorf("input directory is required")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory is required")
	}
	if c.ReferenceName == "" {
		return fmt.Errorf("reference filename is required")
	}
	if c.OutputSuffix == "" {
		return fmt.Errorf("output suffix is required")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be >= 1, got %d", c.Concurrency)
	}
	if c.Concurrency > runtime.NumCPU()*4 {
		return fmt.Errorf("concurrency %d is unreasonable for %d CPUs", c.Concurrency, runtime.NumCPU())
	}
	if c.JobTimeout <= 0 {
		return fmt.Errorf("job timeout must be positive, got %v", c.JobTimeout)
	}
	if c.RetryTimeouts < 0 {
		return fmt.Errorf("retry-timeouts must be >= 0, got %d", c.RetryTimeouts)
	}
	if c.EngineCommand == "" {
		return fmt.Errorf("engine command is required")
	}
	return nil
}
