package cleaner

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hyphanet/support/pkg/ioerr"
	"github.com/hyphanet/support/pkg/metrics"
	"github.com/hyphanet/support/pkg/ramtracker"
	"github.com/hyphanet/support/pkg/rlog"
	"github.com/rs/zerolog"
)

// DefaultRAMMaxAge is the age-based phase's eligibility threshold
// (SPEC_FULL.md §4.6: "default 5 minutes").
const DefaultRAMMaxAge = 5 * time.Minute

// DefaultPollInterval is how often the background loop checks whether
// a sweep should start.
const DefaultPollInterval = time.Second

// DefaultRetryDelay is the pause between retries after a migration
// fails with InsufficientDiskSpace.
const DefaultRetryDelay = 2 * time.Second

// Config parameterizes a Cleaner.
type Config struct {
	Tracker      *ramtracker.Tracker
	RAMPoolSize  int64
	RAMMaxAge    time.Duration
	PollInterval time.Duration
	RetryDelay   time.Duration
	Now          func() time.Time
}

func (c *Config) setDefaults() {
	if c.RAMMaxAge <= 0 {
		c.RAMMaxAge = DefaultRAMMaxAge
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Cleaner is the single background migration task of SPEC_FULL.md
// §4.6 / C6. Start launches its goroutine; Stop terminates it without
// leaking a partial migration. At most one sweep ever runs
// concurrently, enforced by the running flag.
type Cleaner struct {
	cfg Config

	running int32 // atomic, CAS-guarded single-flight flag
	stopCh  chan struct{}
	doneCh  chan struct{}
	wakeCh  chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
}

// New returns a Cleaner that has not yet been started.
func New(cfg Config) *Cleaner {
	cfg.setDefaults()
	return &Cleaner{
		cfg:    cfg,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		wakeCh: make(chan struct{}, 1),
	}
}

// Start launches the background loop. Safe to call only once; later
// calls are no-ops.
func (c *Cleaner) Start() {
	c.startOnce.Do(func() {
		go c.loop()
	})
}

// Stop terminates the background loop and waits for any in-flight
// sweep to observe the stop signal and return.
func (c *Cleaner) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
	<-c.doneCh
}

// Trigger requests an out-of-band sweep attempt at the next poll,
// without waiting for the ticker. Intended as the callback passed to
// pkg/factory's Config.ScheduleCleaner. Non-blocking: if a wake is
// already pending, this is a no-op.
func (c *Cleaner) Trigger() {
	select {
	case c.wakeCh <- struct{}{}:
	default:
	}
}

func (c *Cleaner) loop() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.maybeSweep()
		case <-c.wakeCh:
			c.maybeSweep()
		case <-c.stopCh:
			return
		}
	}
}

// maybeSweep starts a sweep iff ram_in_use has crossed the high-water
// mark and no sweep is already running, per SPEC_FULL.md §4.6: "runs
// while ram_in_use >= pool * HIGH and not already running".
func (c *Cleaner) maybeSweep() {
	if float64(c.cfg.Tracker.RAMInUse()) < float64(c.cfg.RAMPoolSize)*ramtracker.HighWaterFraction {
		return
	}
	if !atomic.CompareAndSwapInt32(&c.running, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&c.running, 0)

	metrics.CleanerRunsTotal.Inc()
	c.sweep()
}

// sweep runs Phase A (age-based) then Phase B (pressure-based) to
// convergence, per SPEC_FULL.md §4.6.
func (c *Cleaner) sweep() {
	log := rlog.WithComponent("cleaner")

	// Phase A: walk from oldest, migrate any entry old enough,
	// stop at the first younger entry.
	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		h, ok := c.cfg.Tracker.PeekOldest()
		if !ok {
			break
		}
		if c.cfg.Now().Sub(h.CreatedAt()) < c.cfg.RAMMaxAge {
			break
		}
		// Take the entry off the queue before migrating it, so the next
		// PeekOldest moves on even if the migration leaves it queued.
		c.cfg.Tracker.Remove(h)
		if !c.migrateWithRetry(log, h, "age") {
			return
		}
	}

	// Phase B: while over the low-water mark, dequeue the oldest
	// entry regardless of age and migrate it.
	for float64(c.cfg.Tracker.RAMInUse()) > float64(c.cfg.RAMPoolSize)*ramtracker.LowWaterFraction {
		select {
		case <-c.stopCh:
			return
		default:
		}

		h, ok := c.cfg.Tracker.PopOldest()
		if !ok {
			break
		}
		if !c.migrateWithRetry(log, h, "pressure") {
			return
		}
	}
}

// migrateWithRetry migrates h, retrying after RetryDelay on
// InsufficientDiskSpace, and logging once per failure. Returns false
// if the cleaner was asked to stop mid-retry.
func (c *Cleaner) migrateWithRetry(log zerolog.Logger, h *ramtracker.Handle, trigger string) bool {
	for {
		err := h.Migrate()
		if err == nil {
			metrics.MigrationsTotal.WithLabelValues(trigger, "ok").Inc()
			return true
		}
		if !ioerr.Is(err, ioerr.InsufficientDiskSpace) {
			metrics.MigrationsTotal.WithLabelValues(trigger, "error").Inc()
			log.Error().Err(err).Str("trigger", trigger).Msg("migration failed")
			return true
		}

		metrics.MigrationsTotal.WithLabelValues(trigger, "insufficient-disk-space").Inc()
		log.Warn().Str("trigger", trigger).Msg("migration deferred: insufficient disk space, retrying")

		select {
		case <-time.After(c.cfg.RetryDelay):
		case <-c.stopCh:
			return false
		}
	}
}
