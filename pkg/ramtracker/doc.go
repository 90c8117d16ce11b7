/*
Package ramtracker implements the process-wide RAM accounting described
in SPEC_FULL.md §4.3 / C3: a monotonic byte counter (ram_in_use) and an
age-ordered FIFO of migratable entries.

Entries are modeled as explicit, container-owned handles rather than
language-level weak references — Go's standard library has no portable
weak-pointer primitive across the versions the rest of this module
targets, so liveness is tracked with an explicit Alive flag the owning
container flips at dispose time, and a lazy compaction pass drops dead
entries from the queue the next time it is scanned. This mirrors the
redesign direction in SPEC_FULL.md §9 ("re-architect with explicit
ownership") instead of chasing finalizer semantics.

Callers may hold a container lock while entering the tracker; the
tracker never calls into a container while holding its own mutex. Lock
order is container → tracker, never the reverse.
*/
package ramtracker
