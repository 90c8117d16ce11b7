/*
Package store implements the leaf storage primitives of the temp-storage
engine (SPEC_FULL.md §4.1 / C1): MemoryStore and MemoryRAB back
RAM-resident containers, FileStore provides pooled positional I/O over a
file, FileBucketStore backs a stream-oriented bucket with an
atomic-rename writer, ReadOnlySliceStore gives a read-only window over a
byte range of a file, and NullStore/NullRAB sink writes and answer empty
reads at near-zero cost.

Every type here implements ioface.Bucket or ioface.RAB directly; the
temp-container layer (pkg/tempio) composes them behind a switchable
proxy but does not need to know their concrete type.
*/
package store
