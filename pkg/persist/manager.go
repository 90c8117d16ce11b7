package persist

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	bolt "go.etcd.io/bbolt"

	"github.com/hyphanet/support/pkg/factory"
	"github.com/hyphanet/support/pkg/ioerr"
	"github.com/hyphanet/support/pkg/ioface"
	"github.com/hyphanet/support/pkg/metrics"
	"github.com/hyphanet/support/pkg/rlog"
	"github.com/hyphanet/support/pkg/store"
	"github.com/hyphanet/support/pkg/wrap"
)

// DiskSpaceChecker is consulted, if set, before creating a new
// persistent-temp file of a known size.
type DiskSpaceChecker func(sizeHint int64) error

// toDisposeReporter lets FinishDelayedFree ask a disposable whether it
// still needs real disposal (SPEC_FULL.md §4.7: "if it still reports
// to_dispose"), without a type switch over every wrapper kind.
type toDisposeReporter interface {
	ToDispose() bool
}

type pendingEntry struct {
	disposable      wrap.RealDisposable
	createdCommitID uint64
}

var indexBucketName = []byte("orphans")

// Config parameterizes a Manager.
type Config struct {
	Dir         string
	Prefix      string
	FilenameGen factory.FilenameGenerator

	// IndexPath, if non-empty, opens a bbolt-backed index: MakeBucket
	// records each new path, Register deletes it, and CompleteInit
	// clears the index. Nothing reads the index back; New always scans
	// the directory. Purely additive local state (SPEC_FULL.md §6).
	IndexPath string
}

// Manager is the persistent temp manager of SPEC_FULL.md §4.7 / C7.
// Its mutexes follow the spec's three-mutex split: mu guards
// pending/commitID, secretMu guards the encryption flag and master
// secret, spaceMu guards the disk-space checker. A fourth, orphansMu,
// guards the orphan set and the init-done flag.
type Manager struct {
	fg     factory.FilenameGenerator
	dir    string
	prefix string

	mu       sync.Mutex
	commitID uint64
	pending  []pendingEntry

	orphansMu sync.Mutex
	orphans   map[string]struct{} // nil once CompleteInit has run
	initDone  bool

	secretMu          sync.Mutex
	masterSecret      []byte
	encryptionEnabled bool

	spaceMu          sync.Mutex
	diskSpaceChecker DiskSpaceChecker

	index *bolt.DB
}

var _ wrap.DelayedDisposer = (*Manager)(nil)

// New scans cfg.Dir for files matching cfg.Prefix to seed the orphan
// set (SPEC_FULL.md §4.7), and opens the optional resume index.
func New(cfg Config) (*Manager, error) {
	fg := cfg.FilenameGen
	if fg == nil {
		fg = factory.UUIDFilenameGenerator{}
	}

	m := &Manager{
		fg:       fg,
		dir:      cfg.Dir,
		prefix:   cfg.Prefix,
		commitID: 1,
		orphans:  make(map[string]struct{}),
	}

	entries, err := os.ReadDir(cfg.Dir)
	if err != nil && !os.IsNotExist(err) {
		return nil, ioerr.Wrap(ioerr.IO, "persist.New: scan dir", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if cfg.Prefix != "" && !strings.HasPrefix(e.Name(), cfg.Prefix) {
			continue
		}
		m.orphans[filepath.Join(cfg.Dir, e.Name())] = struct{}{}
	}

	if cfg.IndexPath != "" {
		db, err := bolt.Open(cfg.IndexPath, 0600, nil)
		if err != nil {
			return nil, ioerr.Wrap(ioerr.IO, "persist.New: open index", err)
		}
		if err := db.Update(func(tx *bolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(indexBucketName)
			return err
		}); err != nil {
			db.Close()
			return nil, ioerr.Wrap(ioerr.IO, "persist.New: init index", err)
		}
		m.index = db
	}

	return m, nil
}

// Close closes the resume index, if one is open.
func (m *Manager) Close() error {
	if m.index == nil {
		return nil
	}
	return m.index.Close()
}

// SetMasterSecret installs (or clears, with nil) the master secret
// gating encryption. Must be called, along with SetDiskSpaceChecker in
// any order, before the first MakeBucket call (SPEC_FULL.md §6).
func (m *Manager) SetMasterSecret(secret []byte) {
	m.secretMu.Lock()
	defer m.secretMu.Unlock()
	m.masterSecret = secret
	m.encryptionEnabled = len(secret) > 0
}

// SetDiskSpaceChecker installs the disk-space floor check consulted by
// MakeBucket.
func (m *Manager) SetDiskSpaceChecker(check DiskSpaceChecker) {
	m.spaceMu.Lock()
	defer m.spaceMu.Unlock()
	m.diskSpaceChecker = check
}

// Register removes path from the orphan set during resume. Ignored if
// path is already absent; fails if CompleteInit has already run.
func (m *Manager) Register(path string) error {
	m.orphansMu.Lock()
	defer m.orphansMu.Unlock()
	if m.initDone {
		return ioerr.New(ioerr.ResumeFailed, "persist.Register: complete_init already ran")
	}
	delete(m.orphans, path)
	if m.index != nil {
		_ = m.index.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(indexBucketName).Delete([]byte(path))
		})
	}
	return nil
}

// CompleteInit deletes every path still in the orphan set and freezes
// it. A second call is a no-op with a warning (SPEC_FULL.md §4.7).
func (m *Manager) CompleteInit() error {
	m.orphansMu.Lock()
	defer m.orphansMu.Unlock()

	log := rlog.WithComponent("persist")
	if m.initDone {
		log.Warn().Msg("complete_init called more than once")
		return nil
	}

	for path := range m.orphans {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("failed to remove orphaned temp file")
		}
	}

	if m.index != nil {
		_ = m.index.Update(func(tx *bolt.Tx) error {
			b := tx.Bucket(indexBucketName)
			var keys [][]byte
			if err := b.ForEach(func(k, _ []byte) error {
				keys = append(keys, append([]byte(nil), k...))
				return nil
			}); err != nil {
				return err
			}
			for _, k := range keys {
				if err := b.Delete(k); err != nil {
					return err
				}
			}
			return nil
		})
	}

	m.orphans = nil
	m.initDone = true
	return nil
}

// MakeBucket creates a persistent-temp file bucket, wraps it with
// padded-then-encrypted when encryption is enabled, and finally with
// delayed-dispose tagged with the current commit id (SPEC_FULL.md
// §4.7).
func (m *Manager) MakeBucket(sizeHint int64) (ioface.Bucket, error) {
	m.spaceMu.Lock()
	checker := m.diskSpaceChecker
	m.spaceMu.Unlock()
	if checker != nil && sizeHint > 0 {
		if err := checker(sizeHint); err != nil {
			return nil, err
		}
	}

	name := m.fg.NewFilename(m.prefix)
	path := filepath.Join(m.dir, name)

	fileStore := store.NewFileBucketStore(path)
	var inner ioface.Bucket = wrap.NewPersistentTempFileBucket(fileStore, path, true)

	m.secretMu.Lock()
	encrypt := m.encryptionEnabled
	m.secretMu.Unlock()
	if encrypt {
		eb, err := wrap.NewEncryptedBucket(wrap.NewPaddedBucket(inner))
		if err != nil {
			return nil, err
		}
		inner = eb
	}

	m.mu.Lock()
	commitID := m.commitID
	m.mu.Unlock()

	dd := wrap.NewDelayedDisposeBucket(inner, m, commitID)

	if m.index != nil {
		_ = m.index.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(indexBucketName).Put([]byte(path), []byte(strconv.FormatUint(commitID, 10)))
		})
	}

	return dd, nil
}

// DelayedDispose implements wrap.DelayedDisposer. If disposable was
// created and destroyed within the same uncommitted transaction it is
// disposed immediately with no persistence side-effect; otherwise it
// waits for the next checkpoint.
func (m *Manager) DelayedDispose(disposable wrap.RealDisposable, createdCommitID uint64) {
	m.mu.Lock()
	if createdCommitID == m.commitID {
		m.mu.Unlock()
		if err := disposable.RealDispose(); err != nil {
			rlog.WithComponent("persist").Warn().Err(err).Msg("immediate same-transaction dispose failed")
		}
		return
	}
	m.pending = append(m.pending, pendingEntry{disposable: disposable, createdCommitID: createdCommitID})
	n := len(m.pending)
	m.mu.Unlock()
	metrics.PersistPendingDisposals.Set(float64(n))
}

// GrabBucketsToDispose marks a checkpoint boundary: it always advances
// the commit id (so that a bucket created before this call and
// disposed after it is recognized as spanning a commit even if nothing
// happened to be pending at this exact tick), and additionally takes
// and clears the pending list when non-empty. Returns ok=false, nil if
// nothing was pending — the caller then has nothing to persist to the
// checkpoint, but the epoch has still moved forward.
func (m *Manager) GrabBucketsToDispose() ([]wrap.RealDisposable, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.commitID++
	metrics.PersistCommitsTotal.Inc()

	if len(m.pending) == 0 {
		return nil, false
	}

	out := make([]wrap.RealDisposable, len(m.pending))
	for i, e := range m.pending {
		out[i] = e.disposable
	}
	m.pending = nil
	metrics.PersistPendingDisposals.Set(0)
	return out, true
}

// FinishDelayedFree actually unlinks every disposable still reporting
// it needs disposal, logging and continuing on individual errors
// (SPEC_FULL.md §4.7). This, chained after GrabBucketsToDispose and a
// checkpoint write, is the only path to real unlink for persistent
// temps (invariant 8, §8).
func (m *Manager) FinishDelayedFree(list []wrap.RealDisposable) {
	log := rlog.WithComponent("persist")
	for _, d := range list {
		if r, ok := d.(toDisposeReporter); ok && !r.ToDispose() {
			continue
		}
		if err := d.RealDispose(); err != nil {
			metrics.PersistDisposalsTotal.WithLabelValues("error").Inc()
			log.Warn().Err(err).Msg("failed to dispose persistent temp")
			continue
		}
		metrics.PersistDisposalsTotal.WithLabelValues("ok").Inc()
	}
}

// CommitID returns the current commit id, for tests and diagnostics.
func (m *Manager) CommitID() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commitID
}

// PendingCount returns the number of disposables awaiting the next
// checkpoint drain.
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// OrphanCount returns the number of orphan paths still unregistered.
// Meaningless (returns 0) after CompleteInit.
func (m *Manager) OrphanCount() int {
	m.orphansMu.Lock()
	defer m.orphansMu.Unlock()
	return len(m.orphans)
}
