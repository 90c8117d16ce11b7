package factory

import (
	"path/filepath"
	"time"

	"github.com/hyphanet/support/pkg/ioerr"
	"github.com/hyphanet/support/pkg/ioface"
	"github.com/hyphanet/support/pkg/ramtracker"
	"github.com/hyphanet/support/pkg/store"
	"github.com/hyphanet/support/pkg/tempio"
)

// RABConfig parameterizes an RABFactory, per SPEC_FULL.md §4.4 / §4.5.
type RABConfig struct {
	Dir          string
	Prefix       string
	MaxSingleRAM int64
	RAMPoolSize  int64
	MinDiskSpace int64
	Tracker      *ramtracker.Tracker
	FilenameGen  FilenameGenerator

	ScheduleCleaner func()

	Now func() time.Time
}

func (c *RABConfig) setDefaults() {
	if c.FilenameGen == nil {
		c.FilenameGen = UUIDFilenameGenerator{}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// RABFactory chooses RAM vs disk backing for new TempRABs, mirroring
// BucketFactory's gate but against a fixed size rather than a hint.
type RABFactory struct {
	cfg RABConfig
}

// NewRABFactory validates cfg.
func NewRABFactory(cfg RABConfig) (*RABFactory, error) {
	if cfg.Tracker == nil {
		return nil, ioerr.New(ioerr.IO, "NewRABFactory: nil Tracker")
	}
	cfg.setDefaults()
	return &RABFactory{cfg: cfg}, nil
}

func (f *RABFactory) ramEligible(size int64) bool {
	ramInUse := int64(f.cfg.Tracker.RAMInUse())
	return size > 0 &&
		size <= f.cfg.MaxSingleRAM &&
		ramInUse < f.cfg.RAMPoolSize &&
		ramInUse+size <= f.cfg.RAMPoolSize
}

func (f *RABFactory) checkHighWater() {
	if f.cfg.ScheduleCleaner == nil {
		return
	}
	if float64(f.cfg.Tracker.RAMInUse()) >= float64(f.cfg.RAMPoolSize)*ramtracker.HighWaterFraction {
		f.cfg.ScheduleCleaner()
	}
}

func (f *RABFactory) fileFactory(size int64) (ioface.RAB, error) {
	name := f.cfg.FilenameGen.NewFilename(f.cfg.Prefix)
	return store.NewFileStore(filepath.Join(f.cfg.Dir, name), size)
}

// MakeRAB returns a new fixed-size temp RAB, RAM-backed if size passes
// the capability gate and the disk-space precheck otherwise succeeds
// for a disk-backed start.
func (f *RABFactory) MakeRAB(size int64) (ioface.RAB, error) {
	tcfg := tempio.RABConfig{
		FileFactory: f.fileFactory,
		Tracker:     f.cfg.Tracker,
		Now:         f.cfg.Now,
	}

	if f.ramEligible(size) {
		rab, err := tempio.NewTempRAB(true, size, tcfg)
		if err != nil {
			return nil, err
		}
		f.checkHighWater()
		return rab, nil
	}

	var rab ioface.RAB
	err := WithDiskSpaceLock(func() error {
		if size > 0 {
			if err := CheckDiskSpace(f.cfg.Dir, size, f.cfg.MinDiskSpace); err != nil {
				return err
			}
		}
		r, err := tempio.NewTempRAB(false, size, tcfg)
		if err != nil {
			return err
		}
		rab = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rab, nil
}
