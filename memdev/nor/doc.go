// Package nor provides an in-memory NOR flash simulator implementing the
// memdev capability set.
//
// The simulator models the properties of serial NOR flash that matter to a
// block driver:
//
//   - Reads may start at any address and have any length.
//   - Programming works one page at a time and can only clear bits (new = old AND data),
//     so rewriting a page without erasing it first corrupts its content.
//   - Erasing works one sector at a time and sets every byte of the sector to 0xFF.
//   - Every command may complete immediately or after a configurable latency; completion is
//     observable through TransferStatus and, when enabled, through the event handler.
//
// Sector storage is sparse: sectors that were never programmed are not allocated
// and read back as erased.
//
// The Device also records a journal of issued commands and supports fault
// injection, which makes it the reference collaborator for memdrv tests.
package nor
