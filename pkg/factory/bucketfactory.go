package factory

import (
	"os"
	"path/filepath"
	"time"

	"github.com/hyphanet/support/pkg/ioerr"
	"github.com/hyphanet/support/pkg/ioface"
	"github.com/hyphanet/support/pkg/ramtracker"
	"github.com/hyphanet/support/pkg/rlog"
	"github.com/hyphanet/support/pkg/store"
	"github.com/hyphanet/support/pkg/tempio"
	"github.com/hyphanet/support/pkg/wrap"
)

// Config parameterizes a BucketFactory, per SPEC_FULL.md §4.5 / §6
// ("Environment").
type Config struct {
	Dir          string
	Prefix       string
	MaxSingleRAM int64
	RAMPoolSize  int64
	MinDiskSpace int64
	Tracker      *ramtracker.Tracker
	FilenameGen  FilenameGenerator

	// ScheduleCleaner is invoked whenever ram_in_use crosses the
	// high-water mark; the cleaner itself enforces single-flight.
	ScheduleCleaner func()

	Now func() time.Time
}

func (c *Config) setDefaults() {
	if c.FilenameGen == nil {
		c.FilenameGen = UUIDFilenameGenerator{}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// BucketFactory chooses RAM vs disk backing for new TempBuckets per the
// RAM-capability gate, and schedules the migration cleaner on
// high-water crossings.
type BucketFactory struct {
	cfg Config
}

// NewBucketFactory validates cfg and ensures Dir exists.
func NewBucketFactory(cfg Config) (*BucketFactory, error) {
	if cfg.Tracker == nil {
		return nil, ioerr.New(ioerr.IO, "NewBucketFactory: nil Tracker")
	}
	cfg.setDefaults()
	if err := os.MkdirAll(cfg.Dir, 0700); err != nil {
		return nil, ioerr.Wrap(ioerr.IO, "NewBucketFactory", err)
	}
	return &BucketFactory{cfg: cfg}, nil
}

// ramEligible implements the RAM-capability gate of SPEC_FULL.md §4.5.
func (f *BucketFactory) ramEligible(sizeHint int64) bool {
	ramInUse := int64(f.cfg.Tracker.RAMInUse())
	return sizeHint > 0 &&
		sizeHint <= f.cfg.MaxSingleRAM &&
		ramInUse < f.cfg.RAMPoolSize &&
		ramInUse+sizeHint <= f.cfg.RAMPoolSize
}

// checkHighWater schedules the cleaner if ram_in_use has crossed the
// high-water mark.
func (f *BucketFactory) checkHighWater() {
	if f.cfg.ScheduleCleaner == nil {
		return
	}
	if float64(f.cfg.Tracker.RAMInUse()) >= float64(f.cfg.RAMPoolSize)*ramtracker.HighWaterFraction {
		f.cfg.ScheduleCleaner()
	}
}

func (f *BucketFactory) newFile() (*store.FileBucketStore, error) {
	name := f.cfg.FilenameGen.NewFilename(f.cfg.Prefix)
	return store.NewFileBucketStore(filepath.Join(f.cfg.Dir, name)), nil
}

func (f *BucketFactory) tempioConfig() tempio.Config {
	return tempio.Config{
		MaxSingleRAM: f.cfg.MaxSingleRAM,
		RAMPoolSize:  f.cfg.RAMPoolSize,
		MinDiskSpace: f.cfg.MinDiskSpace,
		FileFactory:  f.newFile,
		DiskUsable:   func() (int64, error) { return UsableSpace(f.cfg.Dir) },
		Tracker:      f.cfg.Tracker,
		Now:          f.cfg.Now,
	}
}

// MakeBucket returns a new temp bucket, RAM-backed if sizeHint passes
// the capability gate and the disk-space precheck otherwise succeeds
// for a disk-backed start.
func (f *BucketFactory) MakeBucket(sizeHint int64) (ioface.Bucket, error) {
	if f.ramEligible(sizeHint) {
		b := tempio.NewRAMBacked(f.tempioConfig())
		f.checkHighWater()
		return b, nil
	}

	var bucket ioface.Bucket
	err := WithDiskSpaceLock(func() error {
		if sizeHint > 0 {
			if err := CheckDiskSpace(f.cfg.Dir, sizeHint, f.cfg.MinDiskSpace); err != nil {
				return err
			}
		}
		b, err := tempio.NewDiskBacked(f.tempioConfig())
		if err != nil {
			return err
		}
		bucket = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bucket, nil
}

// WrapEncrypted applies the fixed wrap order of SPEC_FULL.md §4.5 for
// encryption-enabled persistent temps: padded-to-power-of-two, then
// AES-CFB encrypted.
func WrapEncrypted(inner ioface.Bucket) (*wrap.EncryptedBucket, error) {
	eb, err := wrap.NewEncryptedBucket(wrap.NewPaddedBucket(inner))
	if err != nil {
		rlog.WithComponent("factory").Warn().Err(err).Msg("failed to build encrypted wrapper")
		return nil, err
	}
	return eb, nil
}
