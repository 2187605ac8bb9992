package nor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-memdrv/internal/util"
	"github.com/arloliu/go-memdrv/logger"
	"github.com/arloliu/go-memdrv/memdev"
)

const erasedByte = 0xFF

var (
	// ErrBusy is returned when a command is issued while a transfer is in progress.
	ErrBusy = errors.New("nor: device busy")
	// ErrOutOfRange is returned when a command addresses memory outside the device.
	ErrOutOfRange = errors.New("nor: address out of range")
	// ErrUnaligned is returned when a page or sector command is not aligned.
	ErrUnaligned = errors.New("nor: unaligned address")
	// ErrInvalidHandle is returned when a command uses a handle not issued by Open.
	ErrInvalidHandle = errors.New("nor: invalid handle")
)

// OpKind identifies a device command in the journal.
type OpKind uint8

const (
	OpRead OpKind = iota
	OpPageWrite
	OpSectorErase
)

func (k OpKind) String() string {
	switch k {
	case OpRead:
		return "read"
	case OpPageWrite:
		return "page-write"
	case OpSectorErase:
		return "sector-erase"
	default:
		return "unknown"
	}
}

// Operation is one journal entry.
type Operation struct {
	Kind    OpKind
	Address uint32
	Length  uint32
}

// Fault selects how an injected failure manifests.
type Fault uint8

const (
	// FaultReject makes the primitive return an error synchronously.
	FaultReject Fault = iota
	// FaultTransfer makes the transfer end with TransferErrorCommand.
	FaultTransfer
)

const sessionHandle memdev.Handle = 1

// Device is a simulated NOR flash. It is safe for concurrent use.
type Device struct {
	cfg     config
	sectors *xsync.MapOf[uint32, []byte]

	mu        sync.Mutex
	opened    int
	busy      bool
	busyUntil time.Time
	gen       uint64
	result    memdev.TransferStatus
	handler   memdev.EventHandler
	faults    map[OpKind][]Fault
	journal   []Operation
}

var (
	_ memdev.Device         = (*Device)(nil)
	_ memdev.Opener         = (*Device)(nil)
	_ memdev.StatusReporter = (*Device)(nil)
	_ memdev.SectorEraser   = (*Device)(nil)
	_ memdev.EventNotifier  = (*Device)(nil)
)

// New creates a simulated device. Without options it models a 4 MiB part with
// 256 byte pages and 4 KiB sectors that completes every command immediately.
func New(opts ...Option) (*Device, error) {
	cfg := config{
		pageSize:   DefaultPageSize,
		sectorSize: DefaultSectorSize,
		sectors:    DefaultSectors,
		logger:     logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(&cfg); err != nil {
			return nil, err
		}
	}

	if cfg.sectorSize%cfg.pageSize != 0 {
		return nil, fmt.Errorf("nor: sector size %d is not a multiple of page size %d", cfg.sectorSize, cfg.pageSize)
	}
	if cfg.size() >= 1<<32 || uint64(cfg.baseAddress)+cfg.size() > 1<<32 {
		return nil, fmt.Errorf("nor: device of %d bytes at 0x%08X exceeds the 32-bit address space", cfg.size(), cfg.baseAddress)
	}

	return &Device{
		cfg:     cfg,
		sectors: xsync.NewMapOf[uint32, []byte](),
		result:  memdev.TransferCompleted,
		faults:  make(map[OpKind][]Fault),
	}, nil
}

func (cfg *config) size() uint64 {
	return uint64(cfg.sectorSize) * uint64(cfg.sectors)
}

// Open opens a session. The simulator supports any number of sessions that all
// share the same handle.
func (d *Device) Open(_ memdev.Intent) (memdev.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.opened++

	return sessionHandle, nil
}

// Sessions returns how many times Open was called.
func (d *Device) Sessions() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.opened
}

// Status always reports the device as ready.
func (d *Device) Status() memdev.Status {
	return memdev.StatusReady
}

// Geometry reports a byte-addressable read class, a page-sized write class and
// a sector-sized erase class.
func (d *Device) Geometry(h memdev.Handle) (memdev.Geometry, error) {
	if h != sessionHandle {
		return memdev.Geometry{}, ErrInvalidHandle
	}

	size := uint32(d.cfg.size()) //nolint:gosec // checked against the address space in New

	return memdev.Geometry{
		ReadBlockSize:     1,
		ReadNumBlocks:     size,
		WriteBlockSize:    d.cfg.pageSize,
		WriteNumBlocks:    size / d.cfg.pageSize,
		EraseBlockSize:    d.cfg.sectorSize,
		EraseNumBlocks:    d.cfg.sectors,
		NumReadRegions:    1,
		NumWriteRegions:   1,
		NumEraseRegions:   1,
		BlockStartAddress: d.cfg.baseAddress,
	}, nil
}

// SetEventHandler registers the completion event handler. It is only invoked
// when the device was created with WithEvents(true). A delayed completion
// invokes fn with the device lock held, so fn must not call back into the device.
func (d *Device) SetEventHandler(_ memdev.Handle, fn memdev.EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handler = fn
}

// Read copies len(buf) bytes starting at address into buf.
func (d *Device) Read(h memdev.Handle, buf []byte, address uint32) error {
	off, err := d.offset(h, address, uint32(len(buf))) //nolint:gosec // bounded by offset
	if err != nil {
		return err
	}

	return d.issue(OpRead, address, uint32(len(buf)), d.cfg.readLatency, func() { //nolint:gosec
		d.readAt(buf, off)
	})
}

// PageWrite programs one page. Bits can only be cleared, so the resulting
// content is the bitwise AND of the old content and data.
func (d *Device) PageWrite(h memdev.Handle, data []byte, address uint32) error {
	if uint32(len(data)) != d.cfg.pageSize { //nolint:gosec
		return fmt.Errorf("nor: page write of %d bytes, page size is %d", len(data), d.cfg.pageSize)
	}
	off, err := d.offset(h, address, d.cfg.pageSize)
	if err != nil {
		return err
	}
	if off%uint64(d.cfg.pageSize) != 0 {
		return fmt.Errorf("%w: page write at 0x%08X", ErrUnaligned, address)
	}

	return d.issue(OpPageWrite, address, d.cfg.pageSize, d.cfg.programLatency, func() {
		d.program(data, off)
	})
}

// SectorErase sets every byte of the sector starting at address to 0xFF.
func (d *Device) SectorErase(h memdev.Handle, address uint32) error {
	off, err := d.offset(h, address, d.cfg.sectorSize)
	if err != nil {
		return err
	}
	if off%uint64(d.cfg.sectorSize) != 0 {
		return fmt.Errorf("%w: sector erase at 0x%08X", ErrUnaligned, address)
	}

	return d.issue(OpSectorErase, address, d.cfg.sectorSize, d.cfg.eraseLatency, func() {
		d.sectors.Delete(uint32(off / uint64(d.cfg.sectorSize))) //nolint:gosec
	})
}

// TransferStatus reports the progress of the last issued command.
func (d *Device) TransferStatus(_ memdev.Handle) memdev.TransferStatus {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.settleLocked()
	if d.busy {
		return memdev.TransferBusy
	}

	return d.result
}

// FailNext injects a fault into the next command of the given kind.
// Faults queue up and are consumed in order.
func (d *Device) FailNext(kind OpKind, fault Fault) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.faults[kind] = append(d.faults[kind], fault)
}

// Journal returns a copy of the commands accepted so far.
func (d *Device) Journal() []Operation {
	d.mu.Lock()
	defer d.mu.Unlock()

	return util.CloneSlice(d.journal, 0)
}

// ResetJournal clears the command journal.
func (d *Device) ResetJournal() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.journal = d.journal[:0]
}

// Contents returns a copy of n bytes starting at address without going through
// the command interface.
func (d *Device) Contents(address uint32, n uint32) ([]byte, error) {
	off, err := d.offset(sessionHandle, address, n)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.readAt(buf, off)

	return buf, nil
}

// Fill stores data at address verbatim, ignoring NOR programming rules.
// It is intended for preparing device content in tests and examples.
func (d *Device) Fill(address uint32, data []byte) error {
	off, err := d.offset(sessionHandle, address, uint32(len(data))) //nolint:gosec
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.forEachSector(off, len(data), func(sector []byte, secOff int, dataOff int, n int) {
		copy(sector[secOff:secOff+n], data[dataOff:dataOff+n])
	})

	return nil
}

// offset converts a device address into an offset of the simulated array and
// checks that [address, address+n) lies inside the device.
func (d *Device) offset(h memdev.Handle, address uint32, n uint32) (uint64, error) {
	if h != sessionHandle {
		return 0, ErrInvalidHandle
	}
	if address < d.cfg.baseAddress {
		return 0, fmt.Errorf("%w: 0x%08X below base 0x%08X", ErrOutOfRange, address, d.cfg.baseAddress)
	}
	off := uint64(address - d.cfg.baseAddress)
	if off+uint64(n) > d.cfg.size() {
		return 0, fmt.Errorf("%w: [0x%08X, +%d)", ErrOutOfRange, address, n)
	}

	return off, nil
}

// issue runs apply for an accepted command and starts its transfer.
func (d *Device) issue(kind OpKind, address, length uint32, latency time.Duration, apply func()) error {
	d.mu.Lock()

	d.settleLocked()
	if d.busy {
		d.mu.Unlock()
		return ErrBusy
	}

	result := memdev.TransferCompleted
	if fault, ok := d.popFaultLocked(kind); ok {
		d.cfg.logger.Debug("nor: injected fault", "op", kind, "address", address, "reject", fault == FaultReject)
		if fault == FaultReject {
			d.mu.Unlock()
			return fmt.Errorf("%w: injected %s fault at 0x%08X", memdev.ErrRejected, kind, address)
		}
		result = memdev.TransferErrorCommand
	}

	d.journal = append(d.journal, Operation{Kind: kind, Address: address, Length: length})
	if result == memdev.TransferCompleted {
		apply()
	}
	d.result = result

	handler := d.handler
	if !d.cfg.events {
		handler = nil
	}

	if latency <= 0 {
		d.mu.Unlock()
		if handler != nil {
			handler(result)
		}

		return nil
	}

	d.busy = true
	d.busyUntil = time.Now().Add(latency)
	d.gen++
	gen := d.gen
	d.mu.Unlock()

	time.AfterFunc(latency, func() {
		d.mu.Lock()
		// a newer command already replaced this transfer
		if d.gen != gen {
			d.mu.Unlock()
			return
		}
		d.busy = false
		if handler != nil {
			handler(result)
		}
		d.mu.Unlock()
	})

	return nil
}

func (d *Device) settleLocked() {
	if d.busy && !time.Now().Before(d.busyUntil) {
		d.busy = false
	}
}

func (d *Device) popFaultLocked(kind OpKind) (Fault, bool) {
	queue := d.faults[kind]
	if len(queue) == 0 {
		return 0, false
	}
	d.faults[kind] = queue[1:]

	return queue[0], true
}

func (d *Device) readAt(buf []byte, off uint64) {
	sectorSize := uint64(d.cfg.sectorSize)
	for n := 0; n < len(buf); {
		idx := uint32(off / sectorSize) //nolint:gosec
		secOff := int(off % sectorSize)
		chunk := min(len(buf)-n, int(sectorSize)-secOff)

		if sector, ok := d.sectors.Load(idx); ok {
			copy(buf[n:n+chunk], sector[secOff:secOff+chunk])
		} else {
			for i := n; i < n+chunk; i++ {
				buf[i] = erasedByte
			}
		}

		n += chunk
		off += uint64(chunk)
	}
}

func (d *Device) program(data []byte, off uint64) {
	d.forEachSector(off, len(data), func(sector []byte, secOff int, dataOff int, n int) {
		for i := 0; i < n; i++ {
			sector[secOff+i] &= data[dataOff+i]
		}
	})
}

// forEachSector calls fn for every sector touched by [off, off+n), allocating
// erased sectors on first use.
func (d *Device) forEachSector(off uint64, n int, fn func(sector []byte, secOff int, dataOff int, n int)) {
	sectorSize := uint64(d.cfg.sectorSize)
	for done := 0; done < n; {
		idx := uint32(off / sectorSize) //nolint:gosec
		secOff := int(off % sectorSize)
		chunk := min(n-done, int(sectorSize)-secOff)

		sector, _ := d.sectors.LoadOrCompute(idx, func() []byte {
			s := make([]byte, sectorSize)
			for i := range s {
				s[i] = erasedByte
			}
			return s
		})
		fn(sector, secOff, done, chunk)

		done += chunk
		off += uint64(chunk)
	}
}

// noEraseDevice hides the SectorErase capability of the wrapped Device.
type noEraseDevice struct {
	dev *Device
}

// WithoutErase wraps dev so that it does not expose the memdev.SectorEraser
// capability, modelling memories that are programmed without an erase cycle.
func WithoutErase(dev *Device) memdev.Device {
	return &noEraseDevice{dev: dev}
}

func (n *noEraseDevice) Read(h memdev.Handle, buf []byte, address uint32) error {
	return n.dev.Read(h, buf, address)
}

func (n *noEraseDevice) PageWrite(h memdev.Handle, data []byte, address uint32) error {
	return n.dev.PageWrite(h, data, address)
}

func (n *noEraseDevice) TransferStatus(h memdev.Handle) memdev.TransferStatus {
	return n.dev.TransferStatus(h)
}

func (n *noEraseDevice) Geometry(h memdev.Handle) (memdev.Geometry, error) {
	return n.dev.Geometry(h)
}

func (n *noEraseDevice) Open(intent memdev.Intent) (memdev.Handle, error) {
	return n.dev.Open(intent)
}

func (n *noEraseDevice) SetEventHandler(h memdev.Handle, fn memdev.EventHandler) {
	n.dev.SetEventHandler(h, fn)
}
