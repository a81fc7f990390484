package source

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/require"

	"github.com/jacktea/massmedia/pkg/xerrors"
)

func TestOpenLocal(t *testing.T) {
	fsys := memfs.New()
	require.NoError(t, util.WriteFile(fsys, "/fixtures/cat.jpg", []byte("meow"), 0o644))
	mux := New(fsys, Options{})

	for _, uri := range []string{"/fixtures/cat.jpg", "file:///fixtures/cat.jpg"} {
		rc, err := mux.Open(context.Background(), uri)
		require.NoError(t, err, uri)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		require.Equal(t, "meow", string(data))
	}

	_, err := mux.Open(context.Background(), "/fixtures/missing.jpg")
	require.ErrorIs(t, err, xerrors.ErrNotFound)
	require.ErrorIs(t, err, xerrors.ErrIO)

	_, err = mux.Open(context.Background(), "  ")
	require.ErrorIs(t, err, xerrors.ErrType)
}

func TestOpenRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/thumb.jpeg":
			_, _ = w.Write([]byte("remote-bytes"))
		case "/big.bin":
			_, _ = w.Write([]byte(strings.Repeat("x", 64)))
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	mux := New(memfs.New(), Options{Client: srv.Client(), MaxSize: 32})
	ctx := context.Background()

	rc, err := mux.Open(ctx, srv.URL+"/thumb.jpeg")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, "remote-bytes", string(data))

	_, err = mux.Open(ctx, srv.URL+"/nope")
	require.ErrorIs(t, err, xerrors.ErrNotFound)

	_, err = mux.Open(ctx, srv.URL+"/broken")
	require.ErrorIs(t, err, xerrors.ErrIO)
	require.NotErrorIs(t, err, xerrors.ErrNotFound)

	_, err = mux.Open(ctx, srv.URL+"/big.bin")
	require.ErrorIs(t, err, xerrors.ErrIO)
}

func TestExt(t *testing.T) {
	testcases := map[string]string{
		"/tmp/photo.JPEG":                          "jpeg",
		"/tmp/archive.tar.gz":                      "gz",
		"/tmp/noext":                               "",
		"/tmp/trailing.":                           "",
		"https://img.example.com/vi/abc/0.jpg?x=1": "jpg",
		"http://example.com/dir.d/file":            "",
		"file:///srv/a.PNG":                        "png",
		`C:\uploads\scan.Tiff`:                     "tiff",
	}
	for uri, want := range testcases {
		require.Equal(t, want, Ext(uri), uri)
	}
}

func TestIsRemote(t *testing.T) {
	testcases := map[string]bool{
		"http://example.com/a.jpg":  true,
		"HTTPS://example.com/a.jpg": true,
		"/etc/secret.key":           false,
		"file:///etc/secret.key":    false,
		"ftp://example.com/a.jpg":   false,
		"relative/a.jpg":            false,
		"":                          false,
	}
	for uri, want := range testcases {
		require.Equal(t, want, IsRemote(uri), uri)
	}
}
