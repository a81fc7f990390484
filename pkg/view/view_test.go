package view

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jacktea/massmedia/pkg/media"
)

var _ PathResolver = (*media.Store)(nil)

type fakeResolver map[string]string

func (f fakeResolver) WebPath(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	p, ok := f[name]
	return p, ok
}

func TestURL(t *testing.T) {
	r := fakeResolver{"abcd.jpg": "media/ab/cd/abcd.jpg"}
	testcases := []struct {
		name, base, file string
		want             string
	}{
		{name: "root base", base: "", file: "abcd.jpg", want: "/media/ab/cd/abcd.jpg"},
		{name: "host base", base: "https://cdn.example.com/", file: "abcd.jpg", want: "https://cdn.example.com/media/ab/cd/abcd.jpg"},
		{name: "absent", base: "https://cdn.example.com", file: "", want: ""},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, string(URL(r, tc.base, tc.file)))
		})
	}
	require.Empty(t, URL(nil, "", "abcd.jpg"))
}

func TestImage(t *testing.T) {
	r := fakeResolver{"abcd.jpg": "media/ab/cd/abcd.jpg"}
	var buf bytes.Buffer
	require.NoError(t, Image(r, "", "abcd.jpg", `a "cat"`).Render(context.Background(), &buf))
	require.Equal(t, `<img src="/media/ab/cd/abcd.jpg" alt="a &#34;cat&#34;">`, buf.String())

	buf.Reset()
	require.NoError(t, Image(r, "", "", "none").Render(context.Background(), &buf))
	require.Empty(t, buf.String())
}
