// Package memdrv implements a block driver for NOR flash and similar memory devices.
//
// A Driver owns a fixed number of instances. Each instance is attached to one
// memory device, described by the capability interfaces of package memdev, and
// serves a small pool of clients. Clients address the media in blocks of the
// read, write or erase geometry class and submit commands that the driver
// sequences into device primitives: reads, page programs and sector erases.
//
// # Commands
//
// Read, Write, Erase and EraseWrite queue a command and return a CommandHandle;
// the client's TransferHandler is notified when it finishes. SyncRead,
// SyncWrite, SyncErase and SyncEraseWrite block until the command finished and
// report the outcome as an error.
//
// Each instance runs one command at a time. EraseWrite erases every sector the
// page range touches before programming it and preserves the pages of a
// partially written sector through a read-modify-write cycle in the scratch
// buffer.
//
// # Signaling
//
// While a device primitive is busy the driver either re-checks the transfer
// status on a fixed interval (Polled) or waits for the device completion event
// (EventDriven).
//
// # Usage
//
//	drv, _ := memdrv.New()
//	defer drv.Shutdown()
//
//	dev, _ := nor.New()
//	_ = drv.Initialize(0, dev, memdrv.WithPolled(time.Millisecond))
//
//	h, err := drv.Open(0, memdev.IntentReadWrite)
//	if err != nil {
//	    // handle error
//	}
//	defer drv.Close(h)
//
//	err = drv.SyncEraseWrite(h, data, 3, 10)
package memdrv
