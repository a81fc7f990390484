// Package view renders stored media references into templ templates.
package view

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// PathResolver maps a stored file name to its path under the web root.
// *media.Store satisfies it.
type PathResolver interface {
	WebPath(fileName string) (string, bool)
}

// URL joins base and the web path of fileName. Absent names yield "".
func URL(r PathResolver, base, fileName string) templ.SafeURL {
	if r == nil {
		return ""
	}
	web, ok := r.WebPath(fileName)
	if !ok {
		return ""
	}
	return templ.SafeURL(strings.TrimRight(base, "/") + "/" + strings.TrimLeft(web, "/"))
}

// Image renders an <img> tag for fileName, or nothing when the name is absent.
func Image(r PathResolver, base, fileName, alt string) templ.Component {
	src := URL(r, base, fileName)
	if src == "" {
		return templ.NopComponent
	}
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<img src="`+templ.EscapeString(string(src))+`" alt="`+templ.EscapeString(alt)+`">`)
		return err
	})
}
