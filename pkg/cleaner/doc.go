/*
Package cleaner implements the migration cleaner of SPEC_FULL.md §4.6 /
C6: a single background goroutine that walks the RAM tracker's queue
and spills entries to disk in two phases — age-based, then
pressure-based — whenever the RAM pool crosses its high-water mark.

The goroutine shape is grounded on the teacher's
pkg/worker/health_monitor.go: a ticker-driven loop selecting on a
stopCh, with a single-flight guard so at most one sweep runs
concurrently.
*/
package cleaner
