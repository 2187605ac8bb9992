package memdrv

import "github.com/arloliu/go-memdrv/memdev"

// OpKind is the kind of block operation carried by a command.
type OpKind uint8

const (
	OpRead OpKind = iota
	OpWrite
	OpErase
	OpEraseWrite
)

func (k OpKind) String() string {
	switch k {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpErase:
		return "erase"
	case OpEraseWrite:
		return "erase-write"
	default:
		return "unknown"
	}
}

// class returns the geometry class that block numbers of k are expressed in.
func (k OpKind) class() GeometryClass {
	switch k {
	case OpRead:
		return ClassRead
	case OpErase:
		return ClassErase
	default:
		return ClassWrite
	}
}

// intent returns the client intent required to submit k.
func (k OpKind) intent() memdev.Intent {
	if k == OpRead {
		return memdev.IntentRead
	}

	return memdev.IntentWrite
}

// CommandStatus is the progress of a command as seen by clients.
type CommandStatus int8

const (
	// CommandErrorUnknown indicates the command failed or the handle is not the live command.
	CommandErrorUnknown CommandStatus = -1
	// CommandCompleted indicates the command finished successfully.
	CommandCompleted CommandStatus = 0
	// CommandQueued indicates the command was accepted but not started.
	CommandQueued CommandStatus = 1
	// CommandInProgress indicates the command is being transferred.
	CommandInProgress CommandStatus = 2
)

func (s CommandStatus) String() string {
	switch s {
	case CommandCompleted:
		return "completed"
	case CommandQueued:
		return "queued"
	case CommandInProgress:
		return "in-progress"
	case CommandErrorUnknown:
		return "error-unknown"
	default:
		return "unknown"
	}
}

// TransferEvent is delivered to a client TransferHandler when a command finishes.
type TransferEvent uint8

const (
	EventCommandComplete TransferEvent = iota
	EventCommandError
)

func (e TransferEvent) String() string {
	if e == EventCommandComplete {
		return "command-complete"
	}

	return "command-error"
}

// TransferHandler is invoked once for every command that runs to completion or
// error. context is the value registered with Driver.SetTransferHandler.
//
// The handler runs while the instance transfer lock is held, so it must not
// submit any operation, synchronous or asynchronous, to the same instance.
// Submissions made through the client whose handler is running fail with
// ErrHandlerReentry. Submissions through another client of the instance block
// until the driver shuts down.
type TransferHandler func(event TransferEvent, cmd CommandHandle, context any)

// command is the single live command descriptor of an instance.
//
// handle and status are guarded by instance.cmdMu, the rest by the transfer lock.
type command struct {
	handle     CommandHandle
	status     CommandStatus
	owner      ClientHandle
	op         OpKind
	buf        []byte
	blockStart uint32
	nBlocks    uint32
}
