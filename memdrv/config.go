package memdrv

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-memdrv/logger"
)

const (
	// DefaultMaxInstances is the number of instance slots of a driver created without WithMaxInstances.
	DefaultMaxInstances = 2
	// MaxInstances is the upper bound of instance slots; the instance index must fit in a handle byte.
	MaxInstances = 256

	// DefaultClientsMax is the number of client slots of an instance.
	DefaultClientsMax = 4
	// MaxClients is the upper bound of client slots per instance.
	MaxClients = 256

	// DefaultPollInterval is the wait between transfer status polls in polled mode.
	DefaultPollInterval = 500 * time.Microsecond
	// MinPollInterval and MaxPollInterval bound the poll interval.
	MinPollInterval = 10 * time.Microsecond
	MaxPollInterval = 10 * time.Second
)

var errConfigNil = errors.New("memdrv: configuration is nil")

type signalingMode uint8

const (
	signalingPolled signalingMode = iota
	signalingEvent
)

// Signaling selects how the sequencer learns that a transfer made progress.
//
// Use Polled for devices that are checked on a fixed interval, and EventDriven
// for devices that report completion through memdev.EventNotifier.
type Signaling struct {
	mode     signalingMode
	interval time.Duration
}

// Polled returns a Signaling that re-checks the transfer status every interval.
func Polled(interval time.Duration) Signaling {
	return Signaling{mode: signalingPolled, interval: interval}
}

// EventDriven returns a Signaling that waits for device completion events.
func EventDriven() Signaling {
	return Signaling{mode: signalingEvent}
}

// IsPolled reports whether s is a polled signaling mode.
func (s Signaling) IsPolled() bool { return s.mode == signalingPolled }

// Interval returns the poll interval, zero in event-driven mode.
func (s Signaling) Interval() time.Duration { return s.interval }

func (s Signaling) String() string {
	if s.IsPolled() {
		return fmt.Sprintf("polled(%s)", s.interval)
	}

	return "event-driven"
}

func (s Signaling) validate() error {
	if s.mode == signalingEvent {
		return nil
	}
	if s.interval < MinPollInterval || s.interval > MaxPollInterval {
		return fmt.Errorf("memdrv: poll interval %s out of range [%s, %s]", s.interval, MinPollInterval, MaxPollInterval)
	}

	return nil
}

// instanceConfig is the static configuration of a driver instance.
type instanceConfig struct {
	// signaling selects polled or event-driven waits. Defaults to Polled(DefaultPollInterval).
	signaling Signaling

	// clientsMax is the number of client slots. Defaults to DefaultClientsMax.
	clientsMax int

	// scratch is the read-modify-write buffer. It must hold at least one erase block.
	// When nil, a buffer is allocated from the device geometry on first open.
	scratch []byte

	logger logger.Logger
}

func newInstanceConfig(l logger.Logger, opts ...InstanceOption) (*instanceConfig, error) {
	cfg := &instanceConfig{
		signaling:  Polled(DefaultPollInterval),
		clientsMax: DefaultClientsMax,
		logger:     l,
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// InstanceOption represents a functional option for configuring a driver instance.
type InstanceOption interface {
	apply(*instanceConfig) error
}

type instanceOptFunc struct {
	name      string
	applyFunc func(*instanceConfig) error
}

func (o *instanceOptFunc) apply(cfg *instanceConfig) error {
	if cfg == nil {
		return errConfigNil
	}

	return o.applyFunc(cfg)
}

func newInstanceOptFunc(name string, f func(*instanceConfig) error) *instanceOptFunc {
	return &instanceOptFunc{name: name, applyFunc: f}
}

// WithSignaling sets the signaling mode of the instance.
//
// The default is Polled(DefaultPollInterval).
func WithSignaling(s Signaling) InstanceOption {
	return newInstanceOptFunc("WithSignaling", func(cfg *instanceConfig) error {
		if err := s.validate(); err != nil {
			return err
		}
		cfg.signaling = s

		return nil
	})
}

// WithPolled is a shorthand of WithSignaling(Polled(interval)).
func WithPolled(interval time.Duration) InstanceOption {
	return WithSignaling(Polled(interval))
}

// WithEventDriven is a shorthand of WithSignaling(EventDriven()).
//
// The device passed to Driver.Initialize must implement memdev.EventNotifier.
func WithEventDriven() InstanceOption {
	return WithSignaling(EventDriven())
}

// WithClientsMax sets the number of client slots, between 1 and MaxClients.
func WithClientsMax(n int) InstanceOption {
	return newInstanceOptFunc("WithClientsMax", func(cfg *instanceConfig) error {
		if n < 1 || n > MaxClients {
			return fmt.Errorf("memdrv: clients max %d out of range [1, %d]", n, MaxClients)
		}
		cfg.clientsMax = n

		return nil
	})
}

// WithScratchBuffer supplies the buffer used to preserve sector contents during
// a partial-sector erase-write. It must be at least one erase block long; this
// is verified when the device geometry becomes known.
func WithScratchBuffer(buf []byte) InstanceOption {
	return newInstanceOptFunc("WithScratchBuffer", func(cfg *instanceConfig) error {
		if len(buf) == 0 {
			return errors.New("memdrv: scratch buffer is empty")
		}
		cfg.scratch = buf

		return nil
	})
}

// WithLogger sets the logger of the instance. It defaults to the driver logger.
func WithLogger(l logger.Logger) InstanceOption {
	return newInstanceOptFunc("WithLogger", func(cfg *instanceConfig) error {
		if l == nil {
			return errors.New("memdrv: logger is nil")
		}
		cfg.logger = l

		return nil
	})
}

type driverConfig struct {
	maxInstances int
	logger       logger.Logger
}

// DriverOption represents a functional option for configuring a Driver.
type DriverOption interface {
	apply(*driverConfig) error
}

type driverOptFunc func(*driverConfig) error

func (f driverOptFunc) apply(cfg *driverConfig) error {
	if cfg == nil {
		return errConfigNil
	}

	return f(cfg)
}

// WithMaxInstances sets the number of instance slots, between 1 and MaxInstances.
func WithMaxInstances(n int) DriverOption {
	return driverOptFunc(func(cfg *driverConfig) error {
		if n < 1 || n > MaxInstances {
			return fmt.Errorf("memdrv: max instances %d out of range [1, %d]", n, MaxInstances)
		}
		cfg.maxInstances = n

		return nil
	})
}

// WithDriverLogger sets the logger of the driver. It defaults to logger.GetLogger().
func WithDriverLogger(l logger.Logger) DriverOption {
	return driverOptFunc(func(cfg *driverConfig) error {
		if l == nil {
			return errors.New("memdrv: logger is nil")
		}
		cfg.logger = l

		return nil
	})
}
