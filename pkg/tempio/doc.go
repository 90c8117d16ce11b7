/*
Package tempio implements the temp container (SPEC_FULL.md §4.4 / C4):
a switchable proxy whose backing store migrates transparently from RAM
to disk under memory pressure, without invalidating readers that were
opened before the migration and have not been overtaken by a new
writer.

Bucket is the append-then-read-many container (TempBucket); RAB is the
fixed-size random-access container (TempRAB). A TempBucket can be
converted into a TempRAB via ToRandomAccess, at which point the two
share ownership of the same disk file and dispose it exactly once.

The container's own mutex is always acquired before any call into the
RAM tracker, never the reverse — see pkg/ramtracker's doc comment.
*/
package tempio
