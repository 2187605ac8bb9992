package memdrv

import "errors"

var (
	// ErrInvalidHandle indicates a client handle that is stale, out of range or not owned by any open client.
	ErrInvalidHandle = errors.New("memdrv: invalid handle")

	// ErrInvalidIntent indicates an operation whose direction was not granted when the client was opened.
	ErrInvalidIntent = errors.New("memdrv: operation not permitted by the client intent")

	// ErrInvalidParameters indicates a nil or short buffer, a zero block count or a block range
	// outside the device geometry.
	ErrInvalidParameters = errors.New("memdrv: invalid block parameters")

	// ErrDeviceNotReady indicates the memory device is not initialized or its geometry is unknown.
	ErrDeviceNotReady = errors.New("memdrv: device not ready")

	// ErrUnsupported indicates an operation the memory device has no primitive for.
	ErrUnsupported = errors.New("memdrv: operation not supported by the device")

	// ErrHandlerReentry indicates an operation submitted by a client from within its own transfer handler.
	ErrHandlerReentry = errors.New("memdrv: operation submitted from a transfer handler")
)

var (
	// ErrResourceExhausted indicates the sequencer could not wait for transfer progress.
	// The command stays in progress and is superseded by the next command on the instance.
	ErrResourceExhausted = errors.New("memdrv: transfer wait failed")

	// ErrCommandError indicates the memory device rejected a command or reported a transfer error.
	ErrCommandError = errors.New("memdrv: command error")
)

var (
	// ErrInvalidInstance indicates an instance index that is out of range or not initialized.
	ErrInvalidInstance = errors.New("memdrv: invalid instance index")

	// ErrInstanceInUse indicates an attempt to initialize an instance twice.
	ErrInstanceInUse = errors.New("memdrv: instance already initialized")

	// ErrExclusive indicates an open that conflicts with exclusive access.
	ErrExclusive = errors.New("memdrv: exclusive access conflict")

	// ErrClientPoolFull indicates that every client slot of the instance is in use.
	ErrClientPoolFull = errors.New("memdrv: client pool exhausted")

	// ErrDriverClosed indicates the driver was closed.
	ErrDriverClosed = errors.New("memdrv: driver closed")
)
