package gc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"go.uber.org/zap"

	"github.com/jacktea/massmedia/pkg/media"
	"github.com/jacktea/massmedia/pkg/xerrors"
)

// Options configures a Sweeper.
type Options struct {
	Store  *media.Store
	Logger *zap.Logger
	// MinAge spares directories modified more recently than this, so a sweep
	// does not take a shard directory an upload has just created. Run falls
	// back to its interval when MinAge is zero.
	MinAge time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Sweeper removes shard directories left empty, for example by removals
// that skipped pruning or by uploads that failed half way.
type Sweeper struct {
	store  *media.Store
	log    *zap.Logger
	minAge time.Duration
	now    func() time.Time
}

// NewSweeper wires a store for garbage collection.
func NewSweeper(opts Options) *Sweeper {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Sweeper{
		store:  opts.Store,
		log:    logger.With(zap.String("component", "gc")),
		minAge: opts.MinAge,
		now:    now,
	}
}

// Sweep performs one pass over the upload root, returning directories deleted.
// Only directories within the configured shard depth are considered; the
// upload root and hidden entries are left alone.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	return s.sweep(ctx, s.minAge)
}

func (s *Sweeper) sweep(ctx context.Context, minAge time.Duration) (int, error) {
	if s.store == nil {
		return 0, fmt.Errorf("gc sweeper missing store")
	}
	depth := s.store.Config().ShardDepth
	if s.store.Config().ShardWidth <= 0 || depth <= 0 {
		return 0, nil
	}
	var total int
	var cutoff time.Time
	if minAge > 0 {
		cutoff = s.now().Add(-minAge)
	}
	_, err := s.sweepDir(ctx, s.store.FS(), s.store.UploadRootDir(), depth, cutoff, &total)
	return total, err
}

// sweepDir reports whether dir is empty after its children were swept.
// Directories modified after a non-zero cutoff count as occupied.
func (s *Sweeper) sweepDir(ctx context.Context, fsys billy.Filesystem, dir string, levels int, cutoff time.Time, total *int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, xerrors.IO("gc.readdir", dir, err)
	}
	remaining := len(entries)
	if levels == 0 {
		return remaining == 0, nil
	}
	for _, entry := range entries {
		if !entry.IsDir() || !media.IsShardDir(entry.Name()) || tooYoung(entry, cutoff) {
			continue
		}
		child := filepath.Join(dir, entry.Name())
		empty, err := s.sweepDir(ctx, fsys, child, levels-1, cutoff, total)
		if err != nil {
			return false, err
		}
		if !empty {
			continue
		}
		if err := fsys.Remove(child); err != nil && !errors.Is(err, os.ErrNotExist) {
			return false, xerrors.IO("gc.remove", child, err)
		}
		s.log.Debug("removed empty shard directory", zap.String("dir", child))
		*total++
		remaining--
	}
	return remaining == 0, nil
}

func tooYoung(info os.FileInfo, cutoff time.Time) bool {
	return !cutoff.IsZero() && info.ModTime().After(cutoff)
}

// Run sweeps every interval until ctx is canceled, sparing directories younger
// than MinAge (or one interval). Failed sweeps are logged and retried on the
// next tick.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	minAge := s.minAge
	if minAge <= 0 {
		minAge = interval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		n, err := s.sweep(ctx, minAge)
		switch {
		case err != nil && !errors.Is(err, context.Canceled):
			s.log.Warn("gc sweep failed", zap.Error(err))
		case n > 0:
			s.log.Info("gc sweep", zap.Int("removed", n))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
