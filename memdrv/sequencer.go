package memdrv

import (
	"context"
	"fmt"

	"github.com/arloliu/go-memdrv/memdev"
)

// runCommand drives the live command to completion or error.
//
// It must be called with the transfer lock held. The client transfer handler is invoked
// once the command finishes. When a wait for progress fails the command is
// abandoned in progress without notifying the client, and the next command
// accepted on the instance supersedes it.
func (inst *instance) runCommand(ctx context.Context) error {
	cmd := &inst.cmd

	inst.resetMachines()
	inst.setCommandStatus(CommandInProgress)

	status := inst.dispatch()
	for status == memdev.TransferBusy {
		if err := inst.waitProgress(ctx); err != nil {
			inst.metrics.incSequencerAbortCount()
			inst.logger.Error("transfer abandoned", "op", cmd.op, "command", cmd.handle, "error", err)

			return err
		}
		status = inst.dispatch()
	}

	var (
		event TransferEvent
		err   error
	)
	if status == memdev.TransferCompleted {
		inst.setCommandStatus(CommandCompleted)
		inst.metrics.incCommandCompleteCount()
		event = EventCommandComplete
	} else {
		inst.setCommandStatus(CommandErrorUnknown)
		inst.metrics.incCommandErrorCount()
		inst.logger.Warn("command failed", "op", cmd.op, "command", cmd.handle,
			"block_start", cmd.blockStart, "blocks", cmd.nBlocks, "status", status)
		event = EventCommandError
		err = fmt.Errorf("%w: %s of %d blocks at %d: %s", ErrCommandError, cmd.op, cmd.nBlocks, cmd.blockStart, status)
	}

	inst.notify(cmd.owner, event, cmd.handle)

	return err
}

// dispatch advances the state machine of the live command by one tick.
func (inst *instance) dispatch() memdev.TransferStatus {
	cmd := &inst.cmd

	switch cmd.op {
	case OpRead:
		return inst.read.tick(inst, cmd.buf, cmd.blockStart, cmd.nBlocks)
	case OpWrite:
		return inst.write.tick(inst, cmd.buf, cmd.blockStart, cmd.nBlocks)
	case OpErase:
		return inst.erase.tick(inst, cmd.blockStart, cmd.nBlocks)
	case OpEraseWrite:
		return inst.ew.tick(inst, cmd.buf)
	default:
		return memdev.TransferErrorUnknown
	}
}

func (inst *instance) resetMachines() {
	inst.read.reset()
	inst.write.reset()
	inst.erase.reset()
	inst.ew.reset(inst.cmd.blockStart, inst.cmd.nBlocks)
}

// allocateCommand fills the live command descriptor and returns its new handle.
// It must be called with the transfer lock held.
func (inst *instance) allocateCommand(owner ClientHandle, op OpKind, buf []byte, blockStart, nBlocks uint32) CommandHandle {
	handle := CommandHandle(makeHandle(inst.bufferToken, inst.index, 0))
	inst.bufferToken = nextToken(inst.bufferToken)

	inst.cmdMu.Lock()
	inst.cmd = command{
		handle:     handle,
		status:     CommandQueued,
		owner:      owner,
		op:         op,
		buf:        buf,
		blockStart: blockStart,
		nBlocks:    nBlocks,
	}
	inst.cmdMu.Unlock()

	return handle
}

func (inst *instance) setCommandStatus(status CommandStatus) {
	inst.cmdMu.Lock()
	inst.cmd.status = status
	inst.cmdMu.Unlock()
}

// commandStatus returns the status of h if it is the live command.
func (inst *instance) commandStatus(h CommandHandle) CommandStatus {
	inst.cmdMu.RLock()
	defer inst.cmdMu.RUnlock()

	if h == InvalidCommandHandle || inst.cmd.handle != h {
		return CommandErrorUnknown
	}

	return inst.cmd.status
}

// notify delivers event to the transfer handler of the client that submitted
// the command. A client closed since then is not notified, even when its pool
// slot has been reopened.
func (inst *instance) notify(owner ClientHandle, event TransferEvent, h CommandHandle) {
	var (
		fn    TransferHandler
		value any
	)
	inst.clientMu.RLock()
	if c, ok := inst.lookupClient(owner); ok {
		fn, value = c.handler, c.context
	}
	inst.clientMu.RUnlock()

	if fn == nil {
		return
	}

	inst.handlerFor.Store(uint32(owner))
	defer inst.handlerFor.Store(0)

	fn(event, h, value)
}
