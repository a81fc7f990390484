package media

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/jacktea/massmedia/pkg/xerrors"
)

// Remove deletes fileName. A missing file is not an error. With
// pruneEmptyFolders set, the shard directories of fileName are removed from
// the deepest up, stopping at the first one that still has entries. The
// upload root itself is never removed.
func (s *Store) Remove(ctx context.Context, fileName string, pruneEmptyFolders bool) error {
	if !validName(fileName) {
		return xerrors.E(xerrors.KindType, "Remove", fileName)
	}
	p, _ := s.AbsoluteFilePath(fileName)
	if err := s.fs.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return xerrors.IO("Remove", p, err)
	}
	s.log.Debug("removed file", zap.String("file", fileName))
	if !pruneEmptyFolders {
		return nil
	}
	return s.pruneFolders(fileName)
}

func (s *Store) pruneFolders(fileName string) error {
	segments := s.shards(fileName)
	for n := len(segments); n > 0; n-- {
		dir := filepath.Join(s.root, filepath.Join(segments[:n]...))
		empty, err := s.isEmptyDir(dir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return xerrors.IO("Remove.prune", dir, err)
		}
		if !empty {
			return nil
		}
		if err := s.fs.Remove(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
			return xerrors.IO("Remove.prune", dir, err)
		}
		s.log.Debug("pruned shard directory", zap.String("dir", dir))
	}
	return nil
}

func (s *Store) isEmptyDir(dir string) (bool, error) {
	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		return false, err
	}
	return len(entries) == 0, nil
}

// Exists reports whether fileName is stored.
func (s *Store) Exists(ctx context.Context, fileName string) (bool, error) {
	if !validName(fileName) {
		return false, xerrors.E(xerrors.KindType, "Exists", fileName)
	}
	p, _ := s.AbsoluteFilePath(fileName)
	_, err := s.fs.Stat(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, xerrors.IO("Exists", p, err)
}

// Open returns the stored bytes of fileName and their size.
func (s *Store) Open(ctx context.Context, fileName string) (io.ReadCloser, int64, error) {
	if !validName(fileName) {
		return nil, 0, xerrors.E(xerrors.KindType, "Open", fileName)
	}
	p, _ := s.AbsoluteFilePath(fileName)
	info, err := s.fs.Stat(p)
	if err != nil {
		return nil, 0, xerrors.IO("Open", p, err)
	}
	if info.IsDir() {
		return nil, 0, xerrors.E(xerrors.KindNotFound, "Open", p)
	}
	f, err := s.fs.Open(p)
	if err != nil {
		return nil, 0, xerrors.IO("Open", p, err)
	}
	return f, info.Size(), nil
}

// IsShardDir reports whether a directory entry name can be a shard directory
// of this store. Hidden entries such as spool files and the staging directory
// are not.
func IsShardDir(name string) bool {
	return name != "" && !strings.HasPrefix(name, ".")
}
