package memdrv

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-memdrv/internal/pool"
	"github.com/arloliu/go-memdrv/logger"
	"github.com/arloliu/go-memdrv/memdev"
)

// instance is the runtime state of one memory device attached to the driver.
type instance struct {
	index   uint8
	dev     memdev.Device
	eraser  memdev.SectorEraser
	cfg     *instanceConfig
	logger  logger.Logger
	metrics InstanceMetrics

	status    atomicStatus
	readyMu   sync.Mutex // serializes geometry discovery
	memHandle memdev.Handle

	// written once by discovery before status becomes Ready
	geometry MediaGeometry
	scratch  []byte

	clientMu    sync.RWMutex
	clients     []client
	numClients  int
	exclusive   bool
	clientToken uint16

	xferLock    chan struct{} // one command in flight per instance
	handlerFor  atomic.Uint32 // client whose transfer handler is running, 0 if none
	cmdMu       sync.RWMutex
	cmd         command
	bufferToken uint16

	transferDone atomic.Bool
	doneCh       chan struct{}

	read  readMachine
	write writeMachine
	erase eraseMachine
	ew    eraseWriteMachine
}

func newInstance(index uint8, dev memdev.Device, cfg *instanceConfig) *instance {
	inst := &instance{
		index:       index,
		dev:         dev,
		cfg:         cfg,
		logger:      cfg.logger.With("instance", index),
		clients:     make([]client, cfg.clientsMax),
		clientToken: 1,
		bufferToken: 1,
		doneCh:      make(chan struct{}, 1),
		xferLock:    make(chan struct{}, 1),
	}
	inst.eraser, _ = dev.(memdev.SectorEraser)
	inst.cmd.handle = InvalidCommandHandle
	inst.cmd.status = CommandErrorUnknown
	inst.status.Set(StatusBusy)

	return inst
}

// ensureReady discovers the device geometry on first use.
//
// A device that is not ready yet or refuses a session leaves the instance Busy
// so that a later open retries. A geometry the driver can't operate moves the
// instance to Error.
func (inst *instance) ensureReady() error {
	if inst.status.IsReady() {
		return nil
	}

	inst.readyMu.Lock()
	defer inst.readyMu.Unlock()

	switch inst.status.Get() {
	case StatusReady:
		return nil
	case StatusBusy:
	default:
		return fmt.Errorf("%w: instance %d is %s", ErrDeviceNotReady, inst.index, inst.status.Get())
	}

	if sr, ok := inst.dev.(memdev.StatusReporter); ok {
		if st := sr.Status(); st != memdev.StatusReady {
			return fmt.Errorf("%w: device is %s", ErrDeviceNotReady, st)
		}
	}

	if op, ok := inst.dev.(memdev.Opener); ok {
		h, err := op.Open(memdev.IntentReadWrite | memdev.IntentExclusive)
		if err != nil {
			return fmt.Errorf("%w: open device: %w", ErrDeviceNotReady, err)
		}
		if h == memdev.InvalidHandle {
			return fmt.Errorf("%w: device refused session", ErrDeviceNotReady)
		}
		inst.memHandle = h
	}

	geo, err := inst.dev.Geometry(inst.memHandle)
	if err != nil {
		return fmt.Errorf("%w: geometry: %w", ErrDeviceNotReady, err)
	}

	if err := inst.setGeometry(geo); err != nil {
		inst.status.ToError()
		inst.logger.Error("unusable device geometry", "error", err)

		return fmt.Errorf("%w: %w", ErrDeviceNotReady, err)
	}

	if !inst.cfg.signaling.IsPolled() {
		// Initialize verified the capability
		notifier, _ := inst.dev.(memdev.EventNotifier)
		notifier.SetEventHandler(inst.memHandle, inst.onTransferEvent)
	}

	inst.status.ToReady()
	inst.logger.Info("device ready",
		"read", inst.geometry.Table[ClassRead],
		"write", inst.geometry.Table[ClassWrite],
		"erase", inst.geometry.Table[ClassErase],
		"signaling", inst.cfg.signaling,
	)

	return nil
}

func (inst *instance) setGeometry(geo memdev.Geometry) error {
	if err := geo.Validate(); err != nil {
		return err
	}

	if inst.eraser != nil {
		if geo.EraseBlockSize == 0 {
			return errors.New("memdrv: device erases sectors but reports no erase geometry")
		}

		switch {
		case inst.cfg.scratch == nil:
			inst.scratch = make([]byte, geo.EraseBlockSize)
		case len(inst.cfg.scratch) < int(geo.EraseBlockSize):
			return fmt.Errorf("memdrv: scratch buffer of %d bytes is smaller than erase block size %d",
				len(inst.cfg.scratch), geo.EraseBlockSize)
		default:
			inst.scratch = inst.cfg.scratch
		}
	}

	inst.geometry = newMediaGeometry(geo)

	return nil
}

// onTransferEvent is the device completion handler used in event-driven mode.
func (inst *instance) onTransferEvent(memdev.TransferStatus) {
	inst.transferDone.Store(true)
	select {
	case inst.doneCh <- struct{}{}:
	default:
	}
}

// lockTransfer takes the instance transfer lock, giving up when ctx is done.
func (inst *instance) lockTransfer(ctx context.Context) error {
	select {
	case inst.xferLock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrDriverClosed, ctx.Err())
	}
}

func (inst *instance) unlockTransfer() {
	<-inst.xferLock
}

// armTransfer clears the completion signal before a device primitive is issued.
func (inst *instance) armTransfer() {
	inst.transferDone.Store(false)
	select {
	case <-inst.doneCh:
	default:
	}
}

// waitProgress blocks until the busy transfer may have progressed.
//
// In polled mode it sleeps for the poll interval. In event-driven mode it waits
// for the device event unless the event already arrived.
func (inst *instance) waitProgress(ctx context.Context) error {
	if inst.cfg.signaling.IsPolled() {
		inst.metrics.incPollWaitCount()

		timer := pool.GetTimer(inst.cfg.signaling.Interval())
		defer pool.PutTimer(timer)

		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrResourceExhausted, ctx.Err())
		}
	}

	if inst.transferDone.Load() {
		return nil
	}

	inst.metrics.incEventWaitCount()
	select {
	case <-inst.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrResourceExhausted, ctx.Err())
	}
}

func (inst *instance) blockStartAddress() uint32 {
	return inst.geometry.blockStartAddress
}

func (inst *instance) blockSize(c GeometryClass) uint32 {
	return inst.geometry.Table[c].BlockSize
}
