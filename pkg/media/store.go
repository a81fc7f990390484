package media

import (
	"errors"
	"os"
	"path/filepath"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"go.uber.org/zap"

	"github.com/jacktea/massmedia/pkg/source"
	"github.com/jacktea/massmedia/pkg/xerrors"
)

// Options wires the capabilities a Store depends on. Zero values pick the
// host filesystem, a source.Mux over it, and a no-op logger.
type Options struct {
	FS     billy.Filesystem
	Opener source.Opener
	Logger *zap.Logger
}

// Store is the sharded, content-addressed file store. It holds no mutable
// state after New returns and may be shared between goroutines.
type Store struct {
	cfg    Config
	root   string
	fs     billy.Filesystem
	opener source.Opener
	log    *zap.Logger
}

// New validates cfg and makes sure the upload root exists. The root is created
// without parents: the web directory itself must already be there.
func New(cfg Config, opts Options) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !filepath.IsAbs(cfg.RootDir) {
		abs, err := filepath.Abs(cfg.RootDir)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.KindConfig, "media.New", cfg.RootDir, err)
		}
		cfg.RootDir = abs
	}
	fsys := opts.FS
	if fsys == nil {
		fsys = osfs.New("/")
	}
	opener := opts.Opener
	if opener == nil {
		opener = source.New(fsys, source.Options{})
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		cfg:    cfg,
		root:   uploadRoot(cfg),
		fs:     fsys,
		opener: opener,
		log:    logger.With(zap.String("component", "media")),
	}
	if err := s.ensureRoot(); err != nil {
		return nil, err
	}
	return s, nil
}

// Config returns the validated settings.
func (s *Store) Config() Config { return s.cfg }

// FS exposes the filesystem the store writes to.
func (s *Store) FS() billy.Filesystem { return s.fs }

// UploadRootDir returns RootDir/../WebDirName/UploadDir.
func (s *Store) UploadRootDir() string { return s.root }

func uploadRoot(cfg Config) string {
	return filepath.Join(cfg.RootDir, "..", cfg.WebDirName, cfg.UploadDir)
}

func (s *Store) ensureRoot() error {
	info, err := s.fs.Stat(s.root)
	if err == nil {
		if !info.IsDir() {
			return xerrors.Wrap(xerrors.KindIO, "media.New", s.root, errors.New("upload root is not a directory"))
		}
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return xerrors.IO("media.New", s.root, err)
	}
	parent := filepath.Dir(s.root)
	if _, err := s.fs.Stat(parent); err != nil {
		return xerrors.IO("media.New", parent, err)
	}
	if err := s.mkdir(s.root); err != nil {
		return err
	}
	s.log.Info("created upload root", zap.String("path", s.root))
	return nil
}

// mkdir creates dir if it is missing. Another writer creating it first is fine.
func (s *Store) mkdir(dir string) error {
	if info, err := s.fs.Stat(dir); err == nil && info.IsDir() {
		return nil
	}
	if err := s.fs.MkdirAll(dir, 0o755); err != nil && !errors.Is(err, os.ErrExist) {
		return xerrors.IO("mkdir", dir, err)
	}
	return nil
}
