/*
Package wrap implements the Bucket/RAB wrapper lattice of
SPEC_FULL.md §4.9 / C9: delayed-dispose, AES-CFB encrypted,
padded-to-power-of-two, no-dispose, and RAB-over-file. Each wrapper
forwards to an inner ioface.Bucket or ioface.RAB and composes with the
others in the order fixed by pkg/factory (disk-backed raw → padded →
encrypted → delayed-dispose).

Serialization constants (magic numbers, field order) are from
SPEC_FULL.md §6 and are preserved exactly so a resumed process can tell
wrapper types apart on disk.
*/
package wrap

// Magic numbers identifying serialized wrapper/store types
// (SPEC_FULL.md §6). Exact values are load-bearing: a resumed process
// must recognize on-disk files written by a prior run.
const (
	MagicBaseFile                  uint32 = 0xc4b7533d
	MagicPersistentTempFile        uint32 = 0x2ffdd4cf
	MagicDelayedDisposeBucket      uint32 = 0xa28f2a2d
	MagicDelayedDisposeRAB         uint32 = 0x3fb645de
	MagicNoDispose                 uint32 = 0xa88da5c2
	MagicPaddedEphemerallyEncrypted uint32 = 0x66c71fc9
	MagicRABBucket                 uint32 = 0x892a708a
)

// serializationVersion is the only version this module writes or
// accepts; a mismatch on read is ioerr.StorageFormat.
const serializationVersion uint32 = 1

// MinPadded is the minimum padded-to-power-of-two size, per
// SPEC_FULL.md §4.9.
const MinPadded int64 = 1024

// aesCFBHeaderLen is the AES-CFB IV length (one AES block). The
// encrypted wrapper writes no header ahead of the ciphertext: its key
// and IV live in memory and in the serialized padded-ephemerally-
// encrypted record (SPEC_FULL.md §6). Nothing in this package uses the
// constant, and the padded size is computed from the payload length
// alone.
const aesCFBHeaderLen = 16
