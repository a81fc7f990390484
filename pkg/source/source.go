// Package source opens byte streams for files named by a local path or a URI.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	billy "github.com/go-git/go-billy/v5"

	"github.com/jacktea/massmedia/pkg/xerrors"
)

// DefaultMaxSize caps remote downloads when Options.MaxSize is zero.
const DefaultMaxSize int64 = 50 << 20

// Opener returns the full byte stream behind uri.
type Opener interface {
	Open(ctx context.Context, uri string) (io.ReadCloser, error)
}

// Options configures a Mux.
type Options struct {
	Client  *http.Client
	MaxSize int64
}

// Mux dispatches on the URI scheme: http and https go over the network,
// file:// and plain paths are read from the filesystem.
type Mux struct {
	fs      billy.Filesystem
	client  *http.Client
	maxSize int64
}

// New returns a Mux that reads local paths through fsys.
func New(fsys billy.Filesystem, opts Options) *Mux {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	maxSize := opts.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Mux{fs: fsys, client: client, maxSize: maxSize}
}

// Open implements Opener.
func (m *Mux) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, xerrors.E(xerrors.KindType, "source.Open", "")
	}
	switch scheme(uri) {
	case "http", "https":
		return m.openRemote(ctx, uri)
	case "file":
		u, err := url.Parse(uri)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.KindType, "source.Open", uri, err)
		}
		return m.openLocal(u.Path)
	default:
		return m.openLocal(uri)
	}
}

func (m *Mux) openLocal(p string) (io.ReadCloser, error) {
	f, err := m.fs.Open(p)
	if err != nil {
		return nil, xerrors.IO("source.open", p, err)
	}
	return f, nil
}

func (m *Mux) openRemote(ctx context.Context, uri string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.KindType, "source.get", uri, err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.KindIO, "source.get", uri, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, xerrors.Wrap(xerrors.KindNotFound, "source.get", uri, fmt.Errorf("status %s", resp.Status))
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		return nil, xerrors.Wrap(xerrors.KindIO, "source.get", uri, fmt.Errorf("status %s", resp.Status))
	case resp.ContentLength > m.maxSize:
		resp.Body.Close()
		return nil, xerrors.Wrap(xerrors.KindIO, "source.get", uri, fmt.Errorf("content length %d exceeds limit %d", resp.ContentLength, m.maxSize))
	}
	return &limitedBody{
		Reader: io.LimitReader(resp.Body, m.maxSize+1),
		body:   resp.Body,
		uri:    uri,
		limit:  m.maxSize,
	}, nil
}

// limitedBody fails the read once more than limit bytes have arrived.
type limitedBody struct {
	io.Reader
	body  io.ReadCloser
	uri   string
	limit int64
	read  int64
}

func (b *limitedBody) Read(p []byte) (int, error) {
	n, err := b.Reader.Read(p)
	b.read += int64(n)
	if b.read > b.limit {
		return n, xerrors.Wrap(xerrors.KindIO, "source.read", b.uri, fmt.Errorf("body exceeds limit %d", b.limit))
	}
	if err != nil && err != io.EOF {
		return n, xerrors.Wrap(xerrors.KindIO, "source.read", b.uri, err)
	}
	return n, err
}

func (b *limitedBody) Close() error { return b.body.Close() }

// Ext returns the lowercased extension of uri without the dot. For URLs only
// the path component is considered.
func Ext(uri string) string {
	p := uri
	switch scheme(uri) {
	case "http", "https", "file":
		if u, err := url.Parse(uri); err == nil {
			p = u.Path
		}
	}
	ext := path.Ext(strings.ReplaceAll(p, "\\", "/"))
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsRemote reports whether uri is fetched over http or https rather than
// read from the local filesystem.
func IsRemote(uri string) bool {
	switch scheme(uri) {
	case "http", "https":
		return true
	}
	return false
}

func scheme(uri string) string {
	i := strings.Index(uri, "://")
	if i <= 0 {
		return ""
	}
	return strings.ToLower(uri[:i])
}
