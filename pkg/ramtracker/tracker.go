package ramtracker

import (
	"sync"

	"github.com/hyphanet/support/pkg/metrics"
)

// HighWaterFraction and LowWaterFraction are the cleaner's start/stop
// thresholds, as fractions of the configured RAM pool size
// (SPEC_FULL.md §4.5 / §4.6). Shared by pkg/factory (which schedules
// the cleaner) and pkg/cleaner (which enforces them) so the two stay
// in lockstep.
const (
	HighWaterFraction = 0.9
	LowWaterFraction  = 0.8
)

// Tracker accounts for process-wide RAM usage across every RAM-backed
// temp container and maintains an insertion-ordered FIFO of migratable
// handles. All state changes take mu; callers may hold a container's
// own lock while calling into the tracker, and the tracker never calls
// into a container while holding mu (SPEC_FULL.md §4.3 / §5: lock order
// is container → tracker, never the reverse).
type Tracker struct {
	mu       sync.Mutex
	ramInUse uint64
	queue    []*Handle
}

// New returns an empty tracker.
func New() *Tracker {
	return &Tracker{}
}

// Take records n additional bytes as RAM-backed.
func (t *Tracker) Take(n uint64) {
	t.mu.Lock()
	t.ramInUse += n
	v := t.ramInUse
	t.mu.Unlock()
	metrics.RAMInUse.Set(float64(v))
}

// Free subtracts n bytes, saturating at zero if the caller's bookkeeping
// over-reports (SPEC_FULL.md §4.3).
func (t *Tracker) Free(n uint64) {
	t.mu.Lock()
	if n > t.ramInUse {
		t.ramInUse = 0
	} else {
		t.ramInUse -= n
	}
	v := t.ramInUse
	t.mu.Unlock()
	metrics.RAMInUse.Set(float64(v))
}

// RAMInUse returns the current tracked byte count.
func (t *Tracker) RAMInUse() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ramInUse
}

// Enqueue appends handle to the back of the FIFO. The caller must have
// already reserved handle's size via Take.
func (t *Tracker) Enqueue(h *Handle) {
	t.mu.Lock()
	t.queue = append(t.queue, h)
	n := len(t.queue)
	t.mu.Unlock()
	metrics.TrackedEntries.Set(float64(n))
}

// Remove drops handle from the queue if present and marks it dead.
// Idempotent: removing an already-removed or unqueued handle is a no-op
// beyond marking it dead.
func (t *Tracker) Remove(h *Handle) {
	h.MarkDead()

	t.mu.Lock()
	for i, qh := range t.queue {
		if qh == h {
			t.queue = append(t.queue[:i], t.queue[i+1:]...)
			break
		}
	}
	n := len(t.queue)
	t.mu.Unlock()
	metrics.TrackedEntries.Set(float64(n))
}

// compact drops leading dead entries. Must be called with mu held.
func (t *Tracker) compact() {
	i := 0
	for i < len(t.queue) && !t.queue[i].Alive() {
		i++
	}
	if i > 0 {
		t.queue = t.queue[i:]
	}
}

// PeekOldest returns the oldest live entry without removing it.
func (t *Tracker) PeekOldest() (*Handle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.compact()
	if len(t.queue) == 0 {
		return nil, false
	}
	return t.queue[0], true
}

// PopOldest removes and returns the oldest live entry.
func (t *Tracker) PopOldest() (*Handle, bool) {
	t.mu.Lock()
	t.compact()
	if len(t.queue) == 0 {
		t.mu.Unlock()
		return nil, false
	}
	h := t.queue[0]
	t.queue = t.queue[1:]
	n := len(t.queue)
	t.mu.Unlock()
	metrics.TrackedEntries.Set(float64(n))
	return h, true
}

// Len reports the number of entries currently queued, including any not
// yet compacted away.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}
