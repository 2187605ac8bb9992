package memdrv

// ClientHandle identifies an open client of a driver instance.
//
// The value encodes a token, the instance index and the client slot as
// token<<16 | instance<<8 | slot.
type ClientHandle uint32

// CommandHandle identifies one block operation accepted by the driver.
type CommandHandle uint32

const (
	// InvalidClientHandle is never assigned to a client.
	InvalidClientHandle ClientHandle = 0xFFFFFFFF
	// InvalidCommandHandle is never assigned to a command.
	InvalidCommandHandle CommandHandle = 0xFFFFFFFF
)

const (
	tokenMax      = 0xFFFF
	tokenShift    = 16
	instanceShift = 8
	instanceMask  = 0x0000FF00
	slotMask      = 0x000000FF
)

// makeHandle packs a handle value. token is always in [1, tokenMax), so the
// result never equals an invalid sentinel nor zero.
func makeHandle(token uint16, instance uint8, slot uint8) uint32 {
	return uint32(token)<<tokenShift | uint32(instance)<<instanceShift | uint32(slot)
}

// nextToken returns the token following token, wrapping back to 1 before tokenMax.
func nextToken(token uint16) uint16 {
	token++
	if token >= tokenMax {
		token = 1
	}

	return token
}

func (h ClientHandle) instance() uint8 {
	return uint8((uint32(h) & instanceMask) >> instanceShift) //nolint:gosec
}

func (h ClientHandle) slot() uint8 {
	return uint8(uint32(h) & slotMask) //nolint:gosec
}
