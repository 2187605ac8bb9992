package memdrv

import "github.com/arloliu/go-memdrv/memdev"

// GeometryClass selects a row of the media geometry table.
type GeometryClass uint8

const (
	ClassRead GeometryClass = iota
	ClassWrite
	ClassErase
)

func (c GeometryClass) String() string {
	switch c {
	case ClassRead:
		return "read"
	case ClassWrite:
		return "write"
	case ClassErase:
		return "erase"
	default:
		return "unknown"
	}
}

// Region is the block layout of one geometry class.
type Region struct {
	BlockSize uint32
	NumBlocks uint32
}

// MediaProperty describes the blocking behavior of the driver operations.
type MediaProperty uint32

const (
	PropReadIsBlocking MediaProperty = 1 << iota
	PropWriteIsBlocking
)

// MediaGeometry is the geometry published to clients.
type MediaGeometry struct {
	Property        MediaProperty
	NumReadRegions  uint32
	NumWriteRegions uint32
	NumEraseRegions uint32
	Table           [3]Region

	blockStartAddress uint32
}

// Region returns the block layout of class c.
func (g MediaGeometry) Region(c GeometryClass) Region {
	if int(c) >= len(g.Table) {
		return Region{}
	}

	return g.Table[c]
}

// BlockSize returns the block size of class c in bytes.
func (g MediaGeometry) BlockSize(c GeometryClass) uint32 { return g.Region(c).BlockSize }

// PagesPerSector returns the number of write blocks in one erase block.
func (g MediaGeometry) PagesPerSector() uint32 {
	if g.Table[ClassWrite].BlockSize == 0 {
		return 0
	}

	return g.Table[ClassErase].BlockSize / g.Table[ClassWrite].BlockSize
}

// inRange reports whether nBlocks blocks starting at blockStart fit in class c.
func (g MediaGeometry) inRange(c GeometryClass, blockStart, nBlocks uint32) bool {
	if nBlocks == 0 {
		return false
	}

	return uint64(blockStart)+uint64(nBlocks) <= uint64(g.Region(c).NumBlocks)
}

func newMediaGeometry(g memdev.Geometry) MediaGeometry {
	return MediaGeometry{
		Property:        PropReadIsBlocking | PropWriteIsBlocking,
		NumReadRegions:  g.NumReadRegions,
		NumWriteRegions: g.NumWriteRegions,
		NumEraseRegions: g.NumEraseRegions,
		Table: [3]Region{
			ClassRead:  {BlockSize: g.ReadBlockSize, NumBlocks: g.ReadNumBlocks},
			ClassWrite: {BlockSize: g.WriteBlockSize, NumBlocks: g.WriteNumBlocks},
			ClassErase: {BlockSize: g.EraseBlockSize, NumBlocks: g.EraseNumBlocks},
		},
		blockStartAddress: g.BlockStartAddress,
	}
}
