package memdev

import "fmt"

// Geometry describes the block layout of a memory device for each operation class.
type Geometry struct {
	ReadBlockSize  uint32
	ReadNumBlocks  uint32
	WriteBlockSize uint32
	WriteNumBlocks uint32
	EraseBlockSize uint32
	EraseNumBlocks uint32

	NumReadRegions  uint32
	NumWriteRegions uint32
	NumEraseRegions uint32

	// BlockStartAddress is the device address of block 0.
	BlockStartAddress uint32
}

// PagesPerSector returns the number of write blocks in one erase block.
func (g Geometry) PagesPerSector() uint32 {
	if g.WriteBlockSize == 0 {
		return 0
	}
	return g.EraseBlockSize / g.WriteBlockSize
}

// Validate checks that the geometry can be driven by a block driver.
//
// Block sizes must be non-zero, every class must end within the 32-bit device
// address space and an erase block must be composed of whole read and write
// blocks. Devices without an erase primitive may report a zero erase geometry,
// in which case only the read and write classes are checked.
func (g Geometry) Validate() error {
	if g.ReadBlockSize == 0 || g.WriteBlockSize == 0 {
		return fmt.Errorf("memdev: zero block size in geometry (read=%d, write=%d)", g.ReadBlockSize, g.WriteBlockSize)
	}
	if err := g.checkSpan("read", g.ReadBlockSize, g.ReadNumBlocks); err != nil {
		return err
	}
	if err := g.checkSpan("write", g.WriteBlockSize, g.WriteNumBlocks); err != nil {
		return err
	}
	if g.EraseBlockSize == 0 {
		return nil
	}
	if err := g.checkSpan("erase", g.EraseBlockSize, g.EraseNumBlocks); err != nil {
		return err
	}
	if g.EraseBlockSize%g.WriteBlockSize != 0 || g.EraseBlockSize%g.ReadBlockSize != 0 {
		return fmt.Errorf("memdev: erase block size %d is not a multiple of read block size %d and write block size %d",
			g.EraseBlockSize, g.ReadBlockSize, g.WriteBlockSize)
	}

	return nil
}

// checkSpan reports a block class whose last byte lies beyond the 32-bit address space.
func (g Geometry) checkSpan(class string, blockSize, numBlocks uint32) error {
	end := uint64(g.BlockStartAddress) + uint64(blockSize)*uint64(numBlocks)
	if end > 1<<32 {
		return fmt.Errorf("memdev: %s region of %d blocks of %d bytes at %#x exceeds the 32-bit address space",
			class, numBlocks, blockSize, g.BlockStartAddress)
	}

	return nil
}
