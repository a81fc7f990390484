package media

import (
	"context"
	"encoding/hex"
	"errors"
	"hash"
	"io"
	"strings"

	"github.com/jacktea/massmedia/pkg/digest"
	"github.com/jacktea/massmedia/pkg/source"
	"github.com/jacktea/massmedia/pkg/xerrors"
)

var (
	errNilHandle = errors.New("upload handle is nil")
	errEmptyURI  = errors.New("uri is empty")
)

// FileName derives the stored name for an uploaded file:
// hash(unique + hash(contents)) followed by the normalized client extension.
// An empty unique is the same as no unique token.
func (s *Store) FileName(ctx context.Context, file UploadedFile, unique string) (string, error) {
	if isNil(file) {
		return "", xerrors.Wrap(xerrors.KindType, "FileName", "", errNilHandle)
	}
	p := file.Path()
	if p == "" {
		return "", xerrors.Wrap(xerrors.KindType, "FileName", "", errors.New("upload handle has no path"))
	}
	f, err := s.fs.Open(p)
	if err != nil {
		return "", xerrors.IO("FileName", p, err)
	}
	defer f.Close()
	return s.nameFromReader(f, p, file.ClientName(), unique)
}

// FileNameFromSource derives the stored name for the bytes behind uri. The
// extension comes from the URI path.
func (s *Store) FileNameFromSource(ctx context.Context, uri string, unique string) (string, error) {
	if strings.TrimSpace(uri) == "" {
		return "", xerrors.Wrap(xerrors.KindType, "FileNameFromSource", "", errEmptyURI)
	}
	rc, err := s.opener.Open(ctx, uri)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return s.nameFromReader(rc, uri, uri, unique)
}

// FileNames applies FileName to each file in order and stops at the first error.
func (s *Store) FileNames(ctx context.Context, files []UploadedFile, unique string) ([]string, error) {
	names := make([]string, 0, len(files))
	for _, file := range files {
		name, err := s.FileName(ctx, file, unique)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

// FileNamesFromSources applies FileNameFromSource to each uri in order and
// stops at the first error.
func (s *Store) FileNamesFromSources(ctx context.Context, uris []string, unique string) ([]string, error) {
	names := make([]string, 0, len(uris))
	for _, uri := range uris {
		name, err := s.FileNameFromSource(ctx, uri, unique)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

func (s *Store) nameFromReader(r io.Reader, where, original, unique string) (string, error) {
	inner, err := digest.SumReader(s.cfg.HashAlgorithm, r)
	if err != nil {
		return "", xerrors.IO("hash", where, err)
	}
	return s.nameFromDigest(inner, original, unique)
}

func (s *Store) nameFromDigest(inner, original, unique string) (string, error) {
	outer, err := digest.Sum(s.cfg.HashAlgorithm, []byte(unique+inner))
	if err != nil {
		return "", xerrors.Wrap(xerrors.KindConfig, "hash", s.cfg.HashAlgorithm, err)
	}
	return outer + "." + normalizeExt(source.Ext(original)), nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext == "jpeg" {
		return "jpg"
	}
	return ext
}

func hexSum(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}
