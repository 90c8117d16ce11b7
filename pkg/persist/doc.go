/*
Package persist implements the persistent temp manager of SPEC_FULL.md
§4.7 / C7: the transactional delayed-dispose protocol that guarantees a
persistent temp file is unlinked exactly once, and only along the path
delayed_dispose -> grab_buckets_to_dispose -> checkpoint-write ->
finish_delayed_free.

Manager also tracks orphan paths left over from a prior run so the host
can reconcile them during resume (register/complete-init), and
optionally records created paths in a small bbolt index, grounded on
the teacher's pkg/storage/boltdb.go transactional idiom. The index is
written but never read back: a restart always scans the directory.
*/
package persist
