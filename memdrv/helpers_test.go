package memdrv

import (
	"io"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-memdrv/logger"
	"github.com/arloliu/go-memdrv/memdev"
	"github.com/arloliu/go-memdrv/memdev/nor"
)

const (
	testPageSize   = 256
	testSectorSize = 4096
	testSectors    = 64 // 1024 pages
	testPPS        = testSectorSize / testPageSize
)

func testLogger() logger.Logger {
	return logger.NewSlogWithWriter(io.Discard, logger.ErrorLevel)
}

func newTestDriver(t *testing.T, opts ...DriverOption) *Driver {
	t.Helper()

	drv, err := New(append([]DriverOption{WithDriverLogger(testLogger())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(drv.Shutdown)

	return drv
}

func newNorDevice(t *testing.T, opts ...nor.Option) *nor.Device {
	t.Helper()

	defaults := []nor.Option{
		nor.WithPageSize(testPageSize),
		nor.WithSectorSize(testSectorSize),
		nor.WithSectors(testSectors),
		nor.WithLogger(testLogger()),
	}
	dev, err := nor.New(append(defaults, opts...)...)
	require.NoError(t, err)

	return dev
}

// newTestInstance initializes instance 0 with dev and opens a read-write client.
func newTestInstance(t *testing.T, dev memdev.Device, opts ...InstanceOption) (*Driver, ClientHandle) {
	t.Helper()

	drv := newTestDriver(t)
	require.NoError(t, drv.Initialize(0, dev, opts...))

	h, err := drv.Open(0, memdev.IntentReadWrite)
	require.NoError(t, err)

	return drv, h
}

func pattern(n int, seed byte) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = seed + byte(i*7)
	}

	return buf
}

func journalOf(dev *nor.Device, kind nor.OpKind) []nor.Operation {
	var ops []nor.Operation
	for _, op := range dev.Journal() {
		if op.Kind == kind {
			ops = append(ops, op)
		}
	}

	return ops
}

// plainDevice hides every optional capability of the wrapped device. The
// driver never opens it, so it forwards the session handle of the wrapped device.
type plainDevice struct {
	dev     memdev.Device
	session memdev.Handle
}

func newPlainDevice(t *testing.T, dev *nor.Device) plainDevice {
	t.Helper()

	h, err := dev.Open(memdev.IntentReadWrite)
	require.NoError(t, err)

	return plainDevice{dev: dev, session: h}
}

func (p plainDevice) Read(h memdev.Handle, buf []byte, address uint32) error {
	return p.dev.Read(p.session, buf, address)
}

func (p plainDevice) PageWrite(h memdev.Handle, data []byte, address uint32) error {
	return p.dev.PageWrite(p.session, data, address)
}

func (p plainDevice) TransferStatus(h memdev.Handle) memdev.TransferStatus {
	return p.dev.TransferStatus(p.session)
}

func (p plainDevice) Geometry(h memdev.Handle) (memdev.Geometry, error) {
	return p.dev.Geometry(p.session)
}

// overlapDevice counts primitives that start while another one is still being issued.
type overlapDevice struct {
	*nor.Device
	active   atomic.Int32
	overlaps atomic.Int32
}

func (o *overlapDevice) enter() func() {
	if o.active.Add(1) != 1 {
		o.overlaps.Add(1)
	}

	return func() { o.active.Add(-1) }
}

func (o *overlapDevice) Read(h memdev.Handle, buf []byte, address uint32) error {
	defer o.enter()()
	return o.Device.Read(h, buf, address)
}

func (o *overlapDevice) PageWrite(h memdev.Handle, data []byte, address uint32) error {
	defer o.enter()()
	return o.Device.PageWrite(h, data, address)
}

func (o *overlapDevice) SectorErase(h memdev.Handle, address uint32) error {
	defer o.enter()()
	return o.Device.SectorErase(h, address)
}
