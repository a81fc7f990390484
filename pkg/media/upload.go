package media

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"go.uber.org/zap"

	"github.com/jacktea/massmedia/pkg/digest"
	"github.com/jacktea/massmedia/pkg/xerrors"
)

// spoolPrefix marks partially written files. The leading dot keeps them out of
// name lookups and garbage collection.
const spoolPrefix = ".incoming-"

// UploadedFile is the handle an HTTP layer hands over for a received file.
type UploadedFile interface {
	// ClientName is the file name the client sent; only its extension is used.
	ClientName() string
	// Path locates the received bytes on the store's filesystem.
	Path() string
	// MoveTo moves the bytes to dst, replacing any file already there.
	MoveTo(fsys billy.Filesystem, dst string) error
}

// LocalFile is an UploadedFile already present on the store's filesystem.
type LocalFile struct {
	Name string
	File string
}

// ClientName implements UploadedFile.
func (f *LocalFile) ClientName() string { return f.Name }

// Path implements UploadedFile.
func (f *LocalFile) Path() string { return f.File }

// MoveTo implements UploadedFile. A file already at dst is only replaced once
// the new bytes are complete next to it, so a failed move leaves it intact.
func (f *LocalFile) MoveTo(fsys billy.Filesystem, dst string) error {
	if filepath.Clean(f.File) == filepath.Clean(dst) {
		return nil
	}
	renameErr := fsys.Rename(f.File, dst)
	if renameErr == nil {
		return nil
	}
	// Renames across devices fail; fall back to a copy.
	if err := copyInto(fsys, f.File, dst); err != nil {
		return errors.Join(renameErr, err)
	}
	if err := fsys.Remove(f.File); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// copyInto writes src to a hidden file in dst's folder and renames it over dst.
func copyInto(fsys billy.Filesystem, src, dst string) error {
	in, err := fsys.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	tmp, err := fsys.TempFile(filepath.Dir(dst), spoolPrefix)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		fsys.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		fsys.Remove(tmpName)
		return err
	}
	if err := fsys.Rename(tmpName, dst); err != nil {
		fsys.Remove(tmpName)
		return err
	}
	return nil
}

// Upload names file by its content, creates its shard directories and moves
// it into place. Uploading identical content again overwrites the same file.
func (s *Store) Upload(ctx context.Context, file UploadedFile, unique string) (string, error) {
	if isNil(file) {
		return "", xerrors.Wrap(xerrors.KindType, "Upload", "", errNilHandle)
	}
	name, err := s.FileName(ctx, file, unique)
	if err != nil {
		return "", err
	}
	if err := s.place("Upload.move", name, func(dst string) error {
		return file.MoveTo(s.fs, dst)
	}); err != nil {
		return "", err
	}
	s.log.Debug("stored upload", zap.String("file", name), zap.String("client_name", file.ClientName()))
	return name, nil
}

// UploadFromURI copies the bytes behind uri into the store. The source is read
// once: it is spooled to a hidden file in the upload root while being hashed,
// then renamed to its content-derived path.
func (s *Store) UploadFromURI(ctx context.Context, uri string, unique string) (string, error) {
	if strings.TrimSpace(uri) == "" {
		return "", xerrors.Wrap(xerrors.KindType, "UploadFromURI", "", errEmptyURI)
	}
	rc, err := s.opener.Open(ctx, uri)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	tmp, err := s.fs.TempFile(s.root, spoolPrefix)
	if err != nil {
		return "", xerrors.IO("UploadFromURI.spool", s.root, err)
	}
	tmpName := tmp.Name()
	h, err := digest.New(s.cfg.HashAlgorithm)
	if err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return "", xerrors.Wrap(xerrors.KindConfig, "UploadFromURI", s.cfg.HashAlgorithm, err)
	}
	if _, err := io.Copy(io.MultiWriter(tmp, h), rc); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return "", xerrors.IO("UploadFromURI.read", uri, err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return "", xerrors.IO("UploadFromURI.spool", tmpName, err)
	}

	name, err := s.nameFromDigest(hexSum(h), uri, unique)
	if err != nil {
		s.fs.Remove(tmpName)
		return "", err
	}
	spooled := &LocalFile{Name: uri, File: tmpName}
	if err := s.place("UploadFromURI.write", name, func(dst string) error {
		return spooled.MoveTo(s.fs, dst)
	}); err != nil {
		s.fs.Remove(tmpName)
		return "", err
	}
	s.log.Debug("stored remote file", zap.String("file", name), zap.String("uri", uri))
	return name, nil
}

// UploadBatch uploads files in order. The first failure stops the batch; files
// stored before it stay stored and their names are returned with the error.
func (s *Store) UploadBatch(ctx context.Context, files []UploadedFile, unique string) ([]string, error) {
	names := make([]string, 0, len(files))
	for _, file := range files {
		name, err := s.Upload(ctx, file, unique)
		if err != nil {
			return names, err
		}
		names = append(names, name)
	}
	return names, nil
}

// UploadBatchFromURIs is UploadBatch for URIs.
func (s *Store) UploadBatchFromURIs(ctx context.Context, uris []string, unique string) ([]string, error) {
	names := make([]string, 0, len(uris))
	for _, uri := range uris {
		name, err := s.UploadFromURI(ctx, uri, unique)
		if err != nil {
			return names, err
		}
		names = append(names, name)
	}
	return names, nil
}

// place creates the shard folder for fileName and runs move into it. A sweep
// may remove the folder before move runs; that case is retried once.
func (s *Store) place(op, fileName string, move func(dst string) error) error {
	dst, _ := s.AbsoluteFilePath(fileName)
	folder := filepath.Dir(dst)
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		if err := s.prepareFolder(fileName); err != nil {
			return err
		}
		if err = move(dst); err == nil {
			return nil
		}
		if _, statErr := s.fs.Stat(folder); statErr == nil {
			break
		}
		s.log.Debug("shard folder vanished before move, retrying", zap.String("dir", folder))
	}
	return xerrors.IO(op, dst, err)
}

// prepareFolder walks down from the upload root creating each missing shard
// directory for fileName.
func (s *Store) prepareFolder(fileName string) error {
	dir, _ := s.AbsoluteFolderPath(fileName)
	if info, err := s.fs.Stat(dir); err == nil && info.IsDir() {
		return nil
	}
	cur := s.root
	for _, segment := range s.shards(fileName) {
		cur = filepath.Join(cur, segment)
		if err := s.mkdir(cur); err != nil {
			return err
		}
	}
	return nil
}

func isNil(file UploadedFile) bool {
	if file == nil {
		return true
	}
	v := reflect.ValueOf(file)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func:
		return v.IsNil()
	}
	return false
}
