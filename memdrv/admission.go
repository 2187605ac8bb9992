package memdrv

import (
	"context"
	"fmt"
)

// Read starts reading nBlocks read blocks from blockStart into buf and returns
// the handle of the command. The client transfer handler is notified when the
// command finishes.
func (drv *Driver) Read(h ClientHandle, buf []byte, blockStart, nBlocks uint32) (CommandHandle, error) {
	return drv.submit(h, OpRead, buf, blockStart, nBlocks, true)
}

// Write starts programming nBlocks write blocks of buf at blockStart. The target
// blocks are expected to be erased.
func (drv *Driver) Write(h ClientHandle, buf []byte, blockStart, nBlocks uint32) (CommandHandle, error) {
	return drv.submit(h, OpWrite, buf, blockStart, nBlocks, true)
}

// Erase starts erasing nBlocks erase blocks from blockStart.
//
// It fails with ErrUnsupported if the device has no sector erase primitive.
func (drv *Driver) Erase(h ClientHandle, blockStart, nBlocks uint32) (CommandHandle, error) {
	return drv.submit(h, OpErase, nil, blockStart, nBlocks, true)
}

// EraseWrite starts writing nBlocks write blocks of buf at blockStart, erasing
// the affected sectors first. Pages of a partially written sector keep their
// contents.
//
// On a device without a sector erase primitive the command is carried out as a plain Write.
func (drv *Driver) EraseWrite(h ClientHandle, buf []byte, blockStart, nBlocks uint32) (CommandHandle, error) {
	return drv.submit(h, OpEraseWrite, buf, blockStart, nBlocks, true)
}

// SyncRead is the blocking form of Read.
func (drv *Driver) SyncRead(h ClientHandle, buf []byte, blockStart, nBlocks uint32) error {
	_, err := drv.submit(h, OpRead, buf, blockStart, nBlocks, false)
	return err
}

// SyncWrite is the blocking form of Write.
func (drv *Driver) SyncWrite(h ClientHandle, buf []byte, blockStart, nBlocks uint32) error {
	_, err := drv.submit(h, OpWrite, buf, blockStart, nBlocks, false)
	return err
}

// SyncErase is the blocking form of Erase.
func (drv *Driver) SyncErase(h ClientHandle, blockStart, nBlocks uint32) error {
	_, err := drv.submit(h, OpErase, nil, blockStart, nBlocks, false)
	return err
}

// SyncEraseWrite is the blocking form of EraseWrite.
func (drv *Driver) SyncEraseWrite(h ClientHandle, buf []byte, blockStart, nBlocks uint32) error {
	_, err := drv.submit(h, OpEraseWrite, buf, blockStart, nBlocks, false)
	return err
}

// submit validates a block operation and runs it.
//
// Asynchronous commands run in a driver task that owns the instance transfer
// lock until the command finishes; synchronous commands run on the caller.
func (drv *Driver) submit(h ClientHandle, op OpKind, buf []byte, blockStart, nBlocks uint32, async bool) (CommandHandle, error) {
	inst, _, err := drv.validate(h, op.intent())
	if err != nil {
		drv.logger.Debug("command rejected", "op", op, "handle", fmt.Sprintf("%#08x", uint32(h)), "error", err)
		return InvalidCommandHandle, err
	}

	if err := inst.checkParams(op, buf, blockStart, nBlocks); err != nil {
		inst.logger.Debug("command rejected", "op", op, "block_start", blockStart, "blocks", nBlocks, "error", err)
		return InvalidCommandHandle, err
	}

	if op == OpErase && inst.eraser == nil {
		return InvalidCommandHandle, fmt.Errorf("%w: %s", ErrUnsupported, op)
	}

	if ClientHandle(inst.handlerFor.Load()) == h {
		return InvalidCommandHandle, fmt.Errorf("%w: %s", ErrHandlerReentry, op)
	}

	if err := inst.lockTransfer(drv.taskMgr.Context()); err != nil {
		return InvalidCommandHandle, err
	}

	// a Deinitialize may have detached the instance while this call waited for the lock
	if !inst.status.IsReady() {
		inst.unlockTransfer()
		return InvalidCommandHandle, fmt.Errorf("%w: instance %d detached", ErrDeviceNotReady, inst.index)
	}

	if op == OpEraseWrite && inst.eraser == nil {
		inst.logger.Warn("device has no sector erase, erase-write carried out as write",
			"block_start", blockStart, "blocks", nBlocks)
		op = OpWrite
	}

	cmdHandle := inst.allocateCommand(h, op, buf, blockStart, nBlocks)

	if !async {
		defer inst.unlockTransfer()
		return cmdHandle, inst.runCommand(drv.taskMgr.Context())
	}

	err = drv.taskMgr.Go(fmt.Sprintf("%s-%d", op, inst.index), func(ctx context.Context) {
		defer inst.unlockTransfer()
		_ = inst.runCommand(ctx)
	})
	if err != nil {
		inst.setCommandStatus(CommandErrorUnknown)
		inst.unlockTransfer()

		return InvalidCommandHandle, fmt.Errorf("%w: %w", ErrDriverClosed, err)
	}

	return cmdHandle, nil
}

// checkParams verifies the buffer and block range of a command against the geometry.
func (inst *instance) checkParams(op OpKind, buf []byte, blockStart, nBlocks uint32) error {
	if op != OpErase && buf == nil {
		return fmt.Errorf("%w: nil buffer", ErrInvalidParameters)
	}

	class := op.class()
	if !inst.geometry.inRange(class, blockStart, nBlocks) {
		return fmt.Errorf("%w: %d %s blocks at %d exceed %d", ErrInvalidParameters,
			nBlocks, class, blockStart, inst.geometry.Region(class).NumBlocks)
	}

	if op != OpErase && uint64(len(buf)) < uint64(nBlocks)*uint64(inst.blockSize(class)) {
		return fmt.Errorf("%w: buffer of %d bytes is shorter than %d %s blocks", ErrInvalidParameters, len(buf), nBlocks, class)
	}

	return nil
}

// CommandStatus returns the status of the command cmd submitted through h.
//
// Only the most recent command of an instance is tracked; the handle of an
// older command yields CommandErrorUnknown.
func (drv *Driver) CommandStatus(h ClientHandle, cmd CommandHandle) CommandStatus {
	inst, _, err := drv.validate(h, 0)
	if err != nil {
		return CommandErrorUnknown
	}

	return inst.commandStatus(cmd)
}

// SetTransferHandler registers fn to be called with value when a command of
// h finishes. A nil fn removes the handler.
func (drv *Driver) SetTransferHandler(h ClientHandle, fn TransferHandler, value any) error {
	inst, _, err := drv.validate(h, 0)
	if err != nil {
		return err
	}

	return inst.setTransferHandler(h, fn, value)
}

// Geometry returns the media geometry of the instance of h.
func (drv *Driver) Geometry(h ClientHandle) (MediaGeometry, error) {
	inst, _, err := drv.validate(h, 0)
	if err != nil {
		return MediaGeometry{}, err
	}

	return inst.geometry, nil
}

// IsAttached reports whether h refers to an open client of a ready instance.
func (drv *Driver) IsAttached(h ClientHandle) bool {
	_, _, err := drv.validate(h, 0)
	return err == nil
}

// IsWriteProtected reports whether the media of h is write protected.
// NOR devices driven by this package are never write protected.
func (drv *Driver) IsWriteProtected(h ClientHandle) (bool, error) {
	if _, _, err := drv.validate(h, 0); err != nil {
		return false, err
	}

	return false, nil
}

// AddressGet returns the device address of block 0.
func (drv *Driver) AddressGet(h ClientHandle) (uint32, error) {
	inst, _, err := drv.validate(h, 0)
	if err != nil {
		return 0, err
	}

	return inst.blockStartAddress(), nil
}

