package memdev

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntent(t *testing.T) {
	assert.True(t, IntentReadWrite.Has(IntentRead))
	assert.True(t, IntentReadWrite.Has(IntentWrite))
	assert.False(t, IntentRead.Has(IntentWrite))
	assert.True(t, (IntentRead | IntentExclusive).IsExclusive())

	assert.Equal(t, "rw", IntentReadWrite.String())
	assert.Equal(t, "r+x", (IntentRead | IntentExclusive).String())
	assert.Equal(t, "none", Intent(0).String())
}

func TestTransferStatus_IsError(t *testing.T) {
	tests := []struct {
		status TransferStatus
		isErr  bool
		str    string
	}{
		{TransferBusy, false, "busy"},
		{TransferCompleted, false, "completed"},
		{TransferErrorUnknown, true, "error-unknown"},
		{TransferErrorCommand, true, "error-command"},
	}

	for _, tt := range tests {
		t.Run(tt.str, func(t *testing.T) {
			assert.Equal(t, tt.isErr, tt.status.IsError())
			assert.Equal(t, tt.str, tt.status.String())
		})
	}
}

func TestGeometry_Validate(t *testing.T) {
	valid := Geometry{
		ReadBlockSize: 1, ReadNumBlocks: 1 << 20,
		WriteBlockSize: 256, WriteNumBlocks: 4096,
		EraseBlockSize: 4096, EraseNumBlocks: 256,
	}

	tests := []struct {
		name    string
		mutate  func(g *Geometry)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Geometry) {}},
		{name: "zero read block", mutate: func(g *Geometry) { g.ReadBlockSize = 0 }, wantErr: true},
		{name: "zero write block", mutate: func(g *Geometry) { g.WriteBlockSize = 0 }, wantErr: true},
		{name: "no erase class", mutate: func(g *Geometry) { g.EraseBlockSize, g.EraseNumBlocks = 0, 0 }},
		{name: "unaligned erase block", mutate: func(g *Geometry) { g.EraseBlockSize = 4000 }, wantErr: true},
		{name: "full address space", mutate: func(g *Geometry) { g.ReadNumBlocks = 1 << 31; g.ReadBlockSize = 2 }},
		{name: "read region past 4GiB", mutate: func(g *Geometry) { g.ReadNumBlocks = 1<<32 - 1; g.ReadBlockSize = 2 }, wantErr: true},
		{name: "write region past 4GiB", mutate: func(g *Geometry) { g.WriteNumBlocks = 0x01000001 }, wantErr: true},
		{name: "erase region past 4GiB", mutate: func(g *Geometry) { g.EraseNumBlocks = 1<<20 + 1 }, wantErr: true},
		{name: "start address near top", mutate: func(g *Geometry) { g.BlockStartAddress = 0xFFFFFF00 }, wantErr: true},
		{
			name: "small device near top",
			mutate: func(g *Geometry) {
				*g = Geometry{
					ReadBlockSize: 1, ReadNumBlocks: 512, WriteBlockSize: 256, WriteNumBlocks: 2,
					EraseBlockSize: 512, EraseNumBlocks: 1, BlockStartAddress: 0xFFFFFE00,
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := valid
			tt.mutate(&g)
			err := g.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.Equal(t, uint32(16), valid.PagesPerSector())
	assert.Equal(t, uint32(0), Geometry{}.PagesPerSector())
}
