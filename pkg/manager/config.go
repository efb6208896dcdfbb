package manager

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/virtplane/pkg/log"
)

// Config holds configuration for creating a Manager
type Config struct {
	// HeartbeatTimeout is how long a node may go without a heartbeat before
	// the reconciler marks it NOT_READY
	HeartbeatTimeout  time.Duration `yaml:"heartbeatTimeout"`
	ReconcileInterval time.Duration `yaml:"reconcileInterval"`
	ScheduleInterval  time.Duration `yaml:"scheduleInterval"`
	MetricsInterval   time.Duration `yaml:"metricsInterval"`

	// TokenTTL is the lifetime of registration tokens issued without one
	TokenTTL time.Duration `yaml:"tokenTTL"`

	// DefaultProject is used by manifests that do not name a project
	DefaultProject string `yaml:"defaultProject"`

	Log        log.Config `yaml:"log"`
	HealthAddr string     `yaml:"healthAddr"`

	// Manifests are applied in order when the control plane starts
	Manifests []string `yaml:"manifests"`
}

// DefaultConfig returns the configuration used when no file is given
func DefaultConfig() *Config {
	return &Config{
		HeartbeatTimeout:  30 * time.Second,
		ReconcileInterval: 10 * time.Second,
		ScheduleInterval:  5 * time.Second,
		MetricsInterval:   15 * time.Second,
		TokenTTL:          24 * time.Hour,
		DefaultProject:    "default",
		Log:               log.Config{Level: log.InfoLevel},
		HealthAddr:        ":9090",
	}
}

// LoadConfig reads a YAML config file over the defaults
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML over the defaults and validates the result
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that intervals are positive and a default project is set
func (c *Config) Validate() error {
	durations := []struct {
		name  string
		value time.Duration
	}{
		{"heartbeatTimeout", c.HeartbeatTimeout},
		{"reconcileInterval", c.ReconcileInterval},
		{"scheduleInterval", c.ScheduleInterval},
		{"metricsInterval", c.MetricsInterval},
		{"tokenTTL", c.TokenTTL},
	}

	var errs []error
	for _, d := range durations {
		if d.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", d.name, d.value))
		}
	}
	if c.DefaultProject == "" {
		errs = append(errs, errors.New("defaultProject must not be empty"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
