// Package memdev defines the capability set a memory device exposes to the
// memdrv block driver.
//
// A memory device is anything that can read an arbitrary number of bytes,
// program one page at a time and, optionally, erase a sector: SPI/QSPI NOR
// flash, on-chip NVM controllers or an in-memory simulator (see package nor).
//
// Every primitive either completes synchronously or starts a transfer whose
// progress is reported by TransferStatus. Devices that can signal completion
// asynchronously implement EventNotifier; the driver then waits for the event
// instead of polling.
//
// The mandatory capabilities are grouped in Device. The optional ones are
// discovered with a type assertion:
//
//	if eraser, ok := dev.(memdev.SectorEraser); ok {
//	    err = eraser.SectorErase(h, address)
//	}
package memdev
