/*
Package factory implements the bucket/RAB factories of SPEC_FULL.md
§4.5 / C5: the RAM-capability gate that decides RAM vs disk backing for
a new container, the high-water trigger that schedules the migration
cleaner, the disk-space precheck ahead of allocating a disk-backed
container, and the fixed wrap ordering (padded, then encrypted) applied
when a persistent temp manager requests an encrypted container.
*/
package factory
