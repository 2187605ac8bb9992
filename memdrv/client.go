package memdrv

import (
	"fmt"

	"github.com/arloliu/go-memdrv/memdev"
)

// client is one slot of the client pool of an instance.
type client struct {
	inUse   bool
	handle  ClientHandle
	intent  memdev.Intent
	handler TransferHandler
	context any
}

// openClient claims a free client slot of inst.
func (inst *instance) openClient(intent memdev.Intent) (ClientHandle, error) {
	inst.clientMu.Lock()
	defer inst.clientMu.Unlock()

	if inst.exclusive {
		return InvalidClientHandle, fmt.Errorf("%w: instance %d is opened exclusively", ErrExclusive, inst.index)
	}
	if intent.IsExclusive() && inst.numClients > 0 {
		return InvalidClientHandle, fmt.Errorf("%w: instance %d has %d clients", ErrExclusive, inst.index, inst.numClients)
	}

	for i := range inst.clients {
		c := &inst.clients[i]
		if c.inUse {
			continue
		}

		*c = client{
			inUse:  true,
			handle: ClientHandle(makeHandle(inst.clientToken, inst.index, uint8(i))), //nolint:gosec
			intent: intent,
		}
		inst.clientToken = nextToken(inst.clientToken)
		inst.numClients++
		if intent.IsExclusive() {
			inst.exclusive = true
		}

		return c.handle, nil
	}

	return InvalidClientHandle, ErrClientPoolFull
}

// closeClient releases the slot of c.
//
// Exclusive access is only ever held by the single open client, so closing any
// client clears it.
func (inst *instance) closeClient(h ClientHandle) error {
	inst.clientMu.Lock()
	defer inst.clientMu.Unlock()

	c, ok := inst.lookupClient(h)
	if !ok {
		return ErrInvalidHandle
	}

	c.inUse = false
	c.handler = nil
	c.context = nil
	inst.numClients--
	inst.exclusive = false

	return nil
}

// lookupClient returns the open client owning h. It must be called with clientMu held.
func (inst *instance) lookupClient(h ClientHandle) (*client, bool) {
	slot := int(h.slot())
	if slot >= len(inst.clients) {
		return nil, false
	}

	c := &inst.clients[slot]
	if !c.inUse || c.handle != h {
		return nil, false
	}

	return c, true
}

// clientIntent returns the intent of the open client owning h.
func (inst *instance) clientIntent(h ClientHandle) (*client, memdev.Intent, bool) {
	inst.clientMu.RLock()
	defer inst.clientMu.RUnlock()

	c, ok := inst.lookupClient(h)
	if !ok {
		return nil, 0, false
	}

	return c, c.intent, true
}

func (inst *instance) setTransferHandler(h ClientHandle, fn TransferHandler, value any) error {
	inst.clientMu.Lock()
	defer inst.clientMu.Unlock()

	c, ok := inst.lookupClient(h)
	if !ok {
		return ErrInvalidHandle
	}
	c.handler = fn
	c.context = value

	return nil
}
