package memdrv

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/go-memdrv/logger"
)

// Config is the file form of a driver configuration.
//
//	max_instances: 2
//	log_level: info
//	instances:
//	  - index: 0
//	    clients_max: 4
//	    signaling: poll
//	    poll_interval: 500us
//	  - index: 1
//	    signaling: event
type Config struct {
	MaxInstances int              `yaml:"max_instances"`
	LogLevel     string           `yaml:"log_level"`
	Instances    []InstanceConfig `yaml:"instances"`
}

// InstanceConfig is the file form of one instance configuration.
type InstanceConfig struct {
	Index        int           `yaml:"index"`
	ClientsMax   int           `yaml:"clients_max"`
	Signaling    string        `yaml:"signaling"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// LoadConfig reads and parses the YAML configuration file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("memdrv: read config: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig parses a YAML configuration. Unknown fields are rejected.
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("memdrv: parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.MaxInstances == 0 {
		c.MaxInstances = DefaultMaxInstances
	}
	if c.MaxInstances < 0 || c.MaxInstances > MaxInstances {
		return fmt.Errorf("memdrv: max_instances %d out of range [1, %d]", c.MaxInstances, MaxInstances)
	}

	if c.LogLevel != "" {
		if _, ok := logger.ParseLevel(c.LogLevel); !ok {
			return fmt.Errorf("memdrv: unknown log_level %q", c.LogLevel)
		}
	}

	seen := make(map[int]bool, len(c.Instances))
	for i := range c.Instances {
		inst := &c.Instances[i]
		if inst.Index < 0 || inst.Index >= c.MaxInstances {
			return fmt.Errorf("%w: %d", ErrInvalidInstance, inst.Index)
		}
		if seen[inst.Index] {
			return fmt.Errorf("memdrv: duplicated instance %d", inst.Index)
		}
		seen[inst.Index] = true

		if _, err := inst.signaling(); err != nil {
			return err
		}
	}

	return nil
}

// Level returns the configured log level, logger.InfoLevel when unset.
func (c *Config) Level() logger.Level {
	level, ok := logger.ParseLevel(c.LogLevel)
	if !ok {
		return logger.InfoLevel
	}

	return level
}

// DriverOptions returns the options for New described by c.
func (c *Config) DriverOptions() []DriverOption {
	return []DriverOption{WithMaxInstances(c.MaxInstances)}
}

// InstanceOptions returns the options for Driver.Initialize of the instance at index.
func (c *Config) InstanceOptions(index int) ([]InstanceOption, error) {
	for i := range c.Instances {
		inst := &c.Instances[i]
		if inst.Index != index {
			continue
		}

		s, err := inst.signaling()
		if err != nil {
			return nil, err
		}

		opts := []InstanceOption{WithSignaling(s)}
		if inst.ClientsMax != 0 {
			opts = append(opts, WithClientsMax(inst.ClientsMax))
		}

		return opts, nil
	}

	return nil, fmt.Errorf("%w: %d not configured", ErrInvalidInstance, index)
}

func (ic *InstanceConfig) signaling() (Signaling, error) {
	switch ic.Signaling {
	case "", "poll":
		interval := ic.PollInterval
		if interval == 0 {
			interval = DefaultPollInterval
		}
		s := Polled(interval)

		return s, s.validate()
	case "event":
		if ic.PollInterval != 0 {
			return Signaling{}, errors.New("memdrv: poll_interval set for event signaling")
		}

		return EventDriven(), nil
	default:
		return Signaling{}, fmt.Errorf("memdrv: unknown signaling %q", ic.Signaling)
	}
}
