package ramtracker

import (
	"sync"
	"time"
)

// Migratable is implemented by a RAM-backed container so the cleaner
// can drive its migration without holding a reference to the
// container's own concrete type.
type Migratable interface {
	Migrate() error
}

// Handle is the tracker-visible face of a RAM-backed container. The
// owning container creates one when it reserves RAM and calls MarkDead
// exactly once, at dispose or successful migration, so the tracker can
// drop it from its queue on next scan without the container and
// tracker ever needing to share a lock.
type Handle struct {
	mu         sync.Mutex
	size       int64
	createdAt  time.Time
	alive      bool
	migratable Migratable
}

// NewHandle returns a live handle of the given size, stamped with
// createdAt as its insertion time.
func NewHandle(size int64, createdAt time.Time) *Handle {
	return &Handle{size: size, createdAt: createdAt, alive: true}
}

// SetMigratable attaches the container that owns this handle, once it
// has been constructed. The cleaner calls Migrate through it.
func (h *Handle) SetMigratable(m Migratable) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.migratable = m
}

// Migrate drives the owning container's migration to disk, if one has
// been attached. Safe to call on a dead handle; the container's own
// Migrate is idempotent.
func (h *Handle) Migrate() error {
	h.mu.Lock()
	m := h.migratable
	h.mu.Unlock()
	if m == nil {
		return nil
	}
	return m.Migrate()
}

// Size returns the byte size the handle was registered with.
func (h *Handle) Size() int64 { return h.size }

// CreatedAt returns the handle's insertion timestamp.
func (h *Handle) CreatedAt() time.Time { return h.createdAt }

// Alive reports whether MarkDead has not yet been called.
func (h *Handle) Alive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.alive
}

// MarkDead flags the handle as no longer migratable. Idempotent.
func (h *Handle) MarkDead() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.alive = false
}
