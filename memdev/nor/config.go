package nor

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-memdrv/logger"
)

// Default geometry of the simulated device: a 4 MiB part with 256 byte pages
// and 4 KiB sectors.
const (
	DefaultPageSize   = 256
	DefaultSectorSize = 4096
	DefaultSectors    = 1024

	MaxLatency = 10 * time.Second
)

type config struct {
	pageSize       uint32
	sectorSize     uint32
	sectors        uint32
	baseAddress    uint32
	readLatency    time.Duration
	programLatency time.Duration
	eraseLatency   time.Duration
	events         bool
	logger         logger.Logger
}

// Option is a functional option for configuring a simulated Device.
type Option interface {
	apply(*config) error
}

type optFunc func(*config) error

func (f optFunc) apply(cfg *config) error { return f(cfg) }

// WithPageSize sets the program page size in bytes.
func WithPageSize(size uint32) Option {
	return optFunc(func(cfg *config) error {
		if size == 0 {
			return errors.New("nor: page size must be positive")
		}
		cfg.pageSize = size

		return nil
	})
}

// WithSectorSize sets the erase sector size in bytes. It must be a multiple of the page size.
func WithSectorSize(size uint32) Option {
	return optFunc(func(cfg *config) error {
		if size == 0 {
			return errors.New("nor: sector size must be positive")
		}
		cfg.sectorSize = size

		return nil
	})
}

// WithSectors sets the number of sectors of the device.
func WithSectors(n uint32) Option {
	return optFunc(func(cfg *config) error {
		if n == 0 {
			return errors.New("nor: sector count must be positive")
		}
		cfg.sectors = n

		return nil
	})
}

// WithBaseAddress sets the device address of the first byte.
func WithBaseAddress(addr uint32) Option {
	return optFunc(func(cfg *config) error {
		cfg.baseAddress = addr
		return nil
	})
}

// WithLatency sets how long read, program and erase commands stay busy.
func WithLatency(read, program, erase time.Duration) Option {
	return optFunc(func(cfg *config) error {
		for _, d := range []time.Duration{read, program, erase} {
			if d < 0 || d > MaxLatency {
				return fmt.Errorf("nor: latency %v out of range [0, %v]", d, MaxLatency)
			}
		}
		cfg.readLatency = read
		cfg.programLatency = program
		cfg.eraseLatency = erase

		return nil
	})
}

// WithEvents enables completion events delivered to the handler registered with SetEventHandler.
func WithEvents(enabled bool) Option {
	return optFunc(func(cfg *config) error {
		cfg.events = enabled
		return nil
	})
}

// WithLogger sets the logger of the device.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *config) error {
		if l == nil {
			return errors.New("nor: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
