package memdrv

import "github.com/arloliu/go-memdrv/memdev"

// stepResult is the outcome of one state machine step: either move on to the
// next state at once, or yield a transfer status to the sequencer.
type stepResult struct {
	status memdev.TransferStatus
	yield  bool
}

var proceed = stepResult{}

func yieldStatus(status memdev.TransferStatus) stepResult {
	return stepResult{status: status, yield: true}
}

// runSteps advances a state machine until a step yields.
func runSteps[S ~uint8](state *S, step func(S) (S, stepResult)) memdev.TransferStatus {
	for {
		next, res := step(*state)
		*state = next
		if res.yield {
			return res.status
		}
	}
}

type readState uint8

const (
	readInit readState = iota
	readIssue
	readPoll
)

// readMachine reads a block range with a single device read.
type readMachine struct {
	state   readState
	address uint32
}

func (m *readMachine) reset() { m.state = readInit }

func (m *readMachine) tick(inst *instance, buf []byte, blockStart, nBlocks uint32) memdev.TransferStatus {
	return runSteps(&m.state, func(st readState) (readState, stepResult) {
		switch st {
		case readInit:
			m.address = blockStart*inst.blockSize(ClassRead) + inst.blockStartAddress()
			return readIssue, proceed

		case readIssue:
			n := nBlocks * inst.blockSize(ClassRead)
			inst.armTransfer()
			if err := inst.dev.Read(inst.memHandle, buf[:n], m.address); err != nil {
				inst.logger.Debug("device read rejected", "address", m.address, "len", n, "error", err)
				return readIssue, yieldStatus(memdev.TransferErrorUnknown)
			}
			inst.metrics.incReadCount()

			return readPoll, proceed

		default:
			return readPoll, yieldStatus(inst.dev.TransferStatus(inst.memHandle))
		}
	})
}

type writeState uint8

const (
	writeInit writeState = iota
	writeIssue
	writePoll
)

// writeMachine programs a page range one page at a time.
type writeMachine struct {
	state     writeState
	address   uint32
	remaining uint32
	cursor    uint32
}

func (m *writeMachine) reset() { m.state = writeInit }

func (m *writeMachine) tick(inst *instance, data []byte, blockStart, nBlocks uint32) memdev.TransferStatus {
	pageSize := inst.blockSize(ClassWrite)

	return runSteps(&m.state, func(st writeState) (writeState, stepResult) {
		switch st {
		case writeInit:
			m.address = blockStart*pageSize + inst.blockStartAddress()
			m.remaining = nBlocks
			m.cursor = 0
			return writeIssue, proceed

		case writeIssue:
			inst.armTransfer()
			if err := inst.dev.PageWrite(inst.memHandle, data[m.cursor:m.cursor+pageSize], m.address); err != nil {
				inst.logger.Debug("device page write rejected", "address", m.address, "error", err)
				return writeIssue, yieldStatus(memdev.TransferErrorUnknown)
			}
			inst.metrics.incPageWriteCount()

			return writePoll, proceed

		default:
			status := inst.dev.TransferStatus(inst.memHandle)
			if status == memdev.TransferCompleted {
				m.remaining--
				if m.remaining > 0 {
					m.address += pageSize
					m.cursor += pageSize
					return writeIssue, yieldStatus(memdev.TransferBusy)
				}
			}

			return writePoll, yieldStatus(status)
		}
	})
}

type eraseState uint8

const (
	eraseInit eraseState = iota
	eraseIssue
	erasePoll
)

// eraseMachine erases a sector range one sector at a time.
type eraseMachine struct {
	state     eraseState
	address   uint32
	remaining uint32
}

func (m *eraseMachine) reset() { m.state = eraseInit }

func (m *eraseMachine) tick(inst *instance, blockStart, nBlocks uint32) memdev.TransferStatus {
	sectorSize := inst.blockSize(ClassErase)

	return runSteps(&m.state, func(st eraseState) (eraseState, stepResult) {
		switch st {
		case eraseInit:
			m.address = blockStart*sectorSize + inst.blockStartAddress()
			m.remaining = nBlocks
			return eraseIssue, proceed

		case eraseIssue:
			if inst.eraser == nil {
				return eraseIssue, yieldStatus(memdev.TransferErrorUnknown)
			}
			inst.armTransfer()
			if err := inst.eraser.SectorErase(inst.memHandle, m.address); err != nil {
				inst.logger.Debug("device sector erase rejected", "address", m.address, "error", err)
				return eraseIssue, yieldStatus(memdev.TransferErrorUnknown)
			}
			inst.metrics.incSectorEraseCount()

			return erasePoll, proceed

		default:
			status := inst.dev.TransferStatus(inst.memHandle)
			if status == memdev.TransferCompleted {
				m.remaining--
				if m.remaining > 0 {
					m.address += sectorSize
					return eraseIssue, yieldStatus(memdev.TransferBusy)
				}
			}

			return erasePoll, yieldStatus(status)
		}
	})
}

type eraseWriteState uint8

const (
	ewInit eraseWriteState = iota
	ewReadSector
	ewEraseSector
	ewWriteSector
)

// eraseWriteMachine writes a page range with erase-before-write semantics.
//
// Each affected sector is erased and fully reprogrammed. When the range covers
// only part of a sector, the sector is first read into the scratch buffer and
// the new pages are overlaid so the untouched pages keep their contents.
type eraseWriteMachine struct {
	state eraseWriteState

	blockStart uint32 // next page to write
	remaining  uint32 // pages left to write
	cursor     uint32 // offset of the next page in the caller data

	sector     uint32
	pageOffset uint32 // first written page inside the sector
	pages      uint32 // pages written in the current sector
	src        []byte // full sector image to program
}

func (m *eraseWriteMachine) reset(blockStart, nBlocks uint32) {
	*m = eraseWriteMachine{
		state:      ewInit,
		blockStart: blockStart,
		remaining:  nBlocks,
	}
}

func (m *eraseWriteMachine) tick(inst *instance, data []byte) memdev.TransferStatus {
	pageSize := inst.blockSize(ClassWrite)
	sectorSize := inst.blockSize(ClassErase)
	pagesPerSector := sectorSize / pageSize

	return runSteps(&m.state, func(st eraseWriteState) (eraseWriteState, stepResult) {
		switch st {
		case ewInit:
			inst.read.reset()
			inst.erase.reset()
			inst.write.reset()

			m.sector = m.blockStart / pagesPerSector
			m.pageOffset = m.blockStart % pagesPerSector
			m.pages = min(pagesPerSector-m.pageOffset, m.remaining)

			if m.pages != pagesPerSector {
				m.src = inst.scratch[:sectorSize]
				inst.metrics.incRMWCycleCount()
				return ewReadSector, proceed
			}

			m.src = data[m.cursor : m.cursor+sectorSize]

			return ewEraseSector, proceed

		case ewReadSector:
			readBlocks := sectorSize / inst.blockSize(ClassRead)
			status := inst.read.tick(inst, m.src, m.sector*readBlocks, readBlocks)
			if status != memdev.TransferCompleted {
				return ewReadSector, yieldStatus(status)
			}

			off := m.pageOffset * pageSize
			n := m.pages * pageSize
			copy(m.src[off:off+n], data[m.cursor:m.cursor+n])

			return ewEraseSector, proceed

		case ewEraseSector:
			status := inst.erase.tick(inst, m.sector, 1)
			if status != memdev.TransferCompleted {
				return ewEraseSector, yieldStatus(status)
			}

			return ewWriteSector, yieldStatus(memdev.TransferBusy)

		default:
			status := inst.write.tick(inst, m.src, m.sector*pagesPerSector, pagesPerSector)
			if status != memdev.TransferCompleted {
				return ewWriteSector, yieldStatus(status)
			}

			if m.remaining == m.pages {
				return ewWriteSector, yieldStatus(memdev.TransferCompleted)
			}

			m.remaining -= m.pages
			m.blockStart += m.pages
			m.cursor += m.pages * pageSize

			return ewInit, yieldStatus(memdev.TransferBusy)
		}
	})
}
