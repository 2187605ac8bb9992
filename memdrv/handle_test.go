package memdrv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMakeHandle(t *testing.T) {
	h := ClientHandle(makeHandle(0x1234, 3, 7))
	assert.Equal(t, ClientHandle(0x12340307), h)
	assert.Equal(t, uint8(3), h.instance())
	assert.Equal(t, uint8(7), h.slot())
}

func TestNextToken_Wraps(t *testing.T) {
	assert.Equal(t, uint16(2), nextToken(1))
	assert.Equal(t, uint16(tokenMax-1), nextToken(tokenMax-2))
	assert.Equal(t, uint16(1), nextToken(tokenMax-1))

	// every token produces a handle distinct from the sentinels
	token := uint16(1)
	for i := 0; i < 2*tokenMax; i++ {
		h := makeHandle(token, 0xFF, 0xFF)
		assert.NotEqual(t, uint32(InvalidClientHandle), h)
		assert.NotZero(t, h)
		token = nextToken(token)
		if t.Failed() {
			return
		}
	}
}
