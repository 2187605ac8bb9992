package memdrv

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-memdrv/internal/task"
	"github.com/arloliu/go-memdrv/logger"
	"github.com/arloliu/go-memdrv/memdev"
)

// Driver is a block memory driver serving a fixed set of instances, each
// attached to one memory device.
//
// All methods are safe for concurrent use.
type Driver struct {
	cfg       *driverConfig
	logger    logger.Logger
	instances []atomic.Pointer[instance]
	initMu    sync.Mutex // serializes Initialize and Deinitialize
	taskMgr   *task.Manager
	closed    atomic.Bool
}

// New creates a Driver with the given options.
func New(opts ...DriverOption) (*Driver, error) {
	cfg := &driverConfig{
		maxInstances: DefaultMaxInstances,
		logger:       logger.GetLogger(),
	}
	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	l := cfg.logger.With("component", "memdrv")

	return &Driver{
		cfg:       cfg,
		logger:    l,
		instances: make([]atomic.Pointer[instance], cfg.maxInstances),
		taskMgr:   task.NewManager(context.Background(), l),
	}, nil
}

// Initialize attaches dev to the instance at index.
//
// The instance becomes Ready when the first client opens it and the device
// geometry was read successfully.
func (drv *Driver) Initialize(index int, dev memdev.Device, opts ...InstanceOption) error {
	if drv.closed.Load() {
		return ErrDriverClosed
	}
	if index < 0 || index >= len(drv.instances) {
		return fmt.Errorf("%w: %d", ErrInvalidInstance, index)
	}
	if dev == nil {
		return errors.New("memdrv: device is nil")
	}

	cfg, err := newInstanceConfig(drv.logger, opts...)
	if err != nil {
		return err
	}

	if !cfg.signaling.IsPolled() {
		if _, ok := dev.(memdev.EventNotifier); !ok {
			return fmt.Errorf("%w: event-driven signaling needs a device event handler", ErrUnsupported)
		}
	}

	drv.initMu.Lock()
	defer drv.initMu.Unlock()

	if drv.instances[index].Load() != nil {
		return fmt.Errorf("%w: %d", ErrInstanceInUse, index)
	}

	inst := newInstance(uint8(index), dev, cfg) //nolint:gosec
	drv.instances[index].Store(inst)
	inst.logger.Info("instance initialized", "signaling", cfg.signaling, "clients_max", cfg.clientsMax)

	return nil
}

// Deinitialize detaches the device of the instance at index.
//
// It waits for the command in flight, if any, then invalidates every client handle of the instance.
func (drv *Driver) Deinitialize(index int) error {
	inst, err := drv.instance(index)
	if err != nil {
		return err
	}

	drv.initMu.Lock()
	defer drv.initMu.Unlock()

	if drv.instances[index].Load() != inst {
		return fmt.Errorf("%w: %d not initialized", ErrInvalidInstance, index)
	}

	if err := inst.lockTransfer(drv.taskMgr.Context()); err != nil {
		return err
	}
	inst.status.Set(StatusUninitialized)
	drv.instances[index].Store(nil)
	inst.unlockTransfer()

	inst.logger.Info("instance deinitialized")

	return nil
}

// Status returns the status of the instance at index.
func (drv *Driver) Status(index int) Status {
	inst, err := drv.instance(index)
	if err != nil {
		return StatusUninitialized
	}

	return inst.status.Get()
}

// Metrics returns the metrics of the instance at index, or nil if it is not initialized.
func (drv *Driver) Metrics(index int) *InstanceMetrics {
	inst, err := drv.instance(index)
	if err != nil {
		return nil
	}

	return &inst.metrics
}

// Open opens a client of the instance at index with the given intent.
//
// The first open of an instance discovers the device geometry. An exclusive
// open fails if any client is open, and no client can open an instance that is
// held exclusively.
func (drv *Driver) Open(index int, intent memdev.Intent) (ClientHandle, error) {
	if drv.closed.Load() {
		return InvalidClientHandle, ErrDriverClosed
	}

	inst, err := drv.instance(index)
	if err != nil {
		return InvalidClientHandle, err
	}

	if err := inst.ensureReady(); err != nil {
		inst.logger.Debug("open failed", "error", err)
		return InvalidClientHandle, err
	}

	h, err := inst.openClient(intent)
	if err != nil {
		inst.logger.Debug("open failed", "intent", intent, "error", err)
		return InvalidClientHandle, err
	}
	inst.logger.Debug("client opened", "handle", fmt.Sprintf("%#08x", uint32(h)), "intent", intent)

	return h, nil
}

// Close closes the client h.
func (drv *Driver) Close(h ClientHandle) error {
	inst, _, err := drv.validate(h, 0)
	if err != nil {
		return err
	}

	return inst.closeClient(h)
}

// Shutdown stops the driver. Commands waiting for transfer progress are
// abandoned and fail with ErrResourceExhausted. Submissions still waiting for
// the transfer lock and all further calls fail with ErrDriverClosed.
func (drv *Driver) Shutdown() {
	if !drv.closed.CompareAndSwap(false, true) {
		return
	}

	drv.taskMgr.Stop()
	drv.taskMgr.Wait()
	drv.logger.Info("driver shut down")
}

func (drv *Driver) instance(index int) (*instance, error) {
	if index < 0 || index >= len(drv.instances) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidInstance, index)
	}

	inst := drv.instances[index].Load()
	if inst == nil {
		return nil, fmt.Errorf("%w: %d not initialized", ErrInvalidInstance, index)
	}

	return inst, nil
}

// validate resolves h to its instance and client. When need is non-zero the
// client intent must grant it.
func (drv *Driver) validate(h ClientHandle, need memdev.Intent) (*instance, *client, error) {
	if drv.closed.Load() {
		return nil, nil, ErrDriverClosed
	}
	if h == InvalidClientHandle || h == 0 {
		return nil, nil, ErrInvalidHandle
	}

	index := int(h.instance())
	if index >= len(drv.instances) {
		return nil, nil, ErrInvalidHandle
	}
	inst := drv.instances[index].Load()
	if inst == nil {
		return nil, nil, ErrInvalidHandle
	}

	c, intent, ok := inst.clientIntent(h)
	if !ok {
		return nil, nil, ErrInvalidHandle
	}

	if !inst.status.IsReady() {
		return nil, nil, ErrDeviceNotReady
	}

	if need != 0 && !intent.Has(need) {
		return nil, nil, fmt.Errorf("%w: client intent %s", ErrInvalidIntent, intent)
	}

	return inst, c, nil
}
