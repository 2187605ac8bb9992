package memdev

import "errors"

// Handle identifies an open session on a memory device.
type Handle uint32

// InvalidHandle is returned by Opener implementations that refuse a session.
const InvalidHandle Handle = 0xFFFFFFFF

// Intent describes how a session intends to use a device. Values can be
// combined with a bitwise OR.
type Intent uint32

const (
	// IntentRead grants read access.
	IntentRead Intent = 1 << iota
	// IntentWrite grants write and erase access.
	IntentWrite
	// IntentExclusive requests that no other session is open at the same time.
	IntentExclusive

	// IntentReadWrite grants both read and write access.
	IntentReadWrite = IntentRead | IntentWrite
)

// Has reports whether any of the bits in other are set in i.
func (i Intent) Has(other Intent) bool { return i&other != 0 }

// IsExclusive reports whether the exclusive bit is set.
func (i Intent) IsExclusive() bool { return i&IntentExclusive != 0 }

// String returns a compact representation such as "rw" or "r+x".
func (i Intent) String() string {
	s := ""
	if i.Has(IntentRead) {
		s += "r"
	}
	if i.Has(IntentWrite) {
		s += "w"
	}
	if i.IsExclusive() {
		s += "+x"
	}
	if s == "" {
		return "none"
	}
	return s
}

// Status is the readiness of a memory device.
type Status int8

const (
	StatusUninitialized Status = iota
	StatusBusy
	StatusReady
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusBusy:
		return "busy"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// TransferStatus is the progress of the transfer most recently started on a device.
type TransferStatus int8

const (
	// TransferBusy indicates the transfer has not finished yet.
	TransferBusy TransferStatus = iota
	// TransferCompleted indicates the transfer finished successfully.
	TransferCompleted
	// TransferErrorUnknown indicates the transfer failed for an unspecified reason.
	TransferErrorUnknown
	// TransferErrorCommand indicates the device rejected the command after it was issued.
	TransferErrorCommand
)

// IsError reports whether s is one of the error variants.
func (s TransferStatus) IsError() bool { return s >= TransferErrorUnknown }

func (s TransferStatus) String() string {
	switch s {
	case TransferBusy:
		return "busy"
	case TransferCompleted:
		return "completed"
	case TransferErrorUnknown:
		return "error-unknown"
	case TransferErrorCommand:
		return "error-command"
	default:
		return "unknown"
	}
}

// EventHandler receives transfer completion events from a device. It may be
// invoked from any goroutine, including the one issuing the command.
type EventHandler func(status TransferStatus)

// ErrRejected is a convenience error for primitives that refuse a command.
var ErrRejected = errors.New("memdev: command rejected")

// Device is the mandatory capability set of a memory device.
type Device interface {
	// Read starts reading len(buf) bytes from address into buf.
	Read(h Handle, buf []byte, address uint32) error
	// PageWrite starts programming one page from data at address.
	PageWrite(h Handle, data []byte, address uint32) error
	// TransferStatus reports the progress of the most recently started transfer.
	TransferStatus(h Handle) TransferStatus
	// Geometry reports the device geometry.
	Geometry(h Handle) (Geometry, error)
}

// Opener is implemented by devices that require a session to be opened.
type Opener interface {
	Open(intent Intent) (Handle, error)
}

// StatusReporter is implemented by devices with their own initialization phase.
type StatusReporter interface {
	Status() Status
}

// SectorEraser is implemented by devices with a native sector erase primitive.
type SectorEraser interface {
	SectorErase(h Handle, address uint32) error
}

// EventNotifier is implemented by devices that can signal transfer completion.
type EventNotifier interface {
	SetEventHandler(h Handle, fn EventHandler)
}
