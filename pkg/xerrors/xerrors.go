package xerrors

import (
	"errors"
	iofs "io/fs"
	"os"
)

// Kind classifies massmedia errors.
type Kind int

const (
	// KindIO is a filesystem or remote-read failure. Unclassified errors fall here.
	KindIO Kind = iota
	// KindConfig marks settings rejected at construction.
	KindConfig
	// KindType marks a wrong-shaped argument handed to an operation.
	KindType
	// KindNotFound is an I/O failure caused by a missing file or source.
	KindNotFound
	// KindPermission is an I/O failure caused by access rights.
	KindPermission
)

// Sentinels for errors.Is. ErrIO also matches KindNotFound and KindPermission.
var (
	ErrIO         = &Error{Kind: KindIO}
	ErrConfig     = &Error{Kind: KindConfig}
	ErrType       = &Error{Kind: KindType}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrPermission = &Error{Kind: KindPermission}
)

// Error wraps an underlying error with additional metadata.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	base := e.Kind.String()
	if e.Op != "" {
		base = e.Op + ": " + base
	}
	if e.Path != "" {
		base += " " + e.Path
	}
	if e.Err != nil {
		return base + ": " + e.Err.Error()
	}
	return base
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Op != "" || t.Path != "" || t.Err != nil {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	return t.Kind == KindIO && e.Kind.isIO()
}

func (k Kind) isIO() bool {
	switch k {
	case KindIO, KindNotFound, KindPermission:
		return true
	}
	return false
}

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "invalid configuration"
	case KindType:
		return "invalid argument"
	case KindNotFound:
		return "not found"
	case KindPermission:
		return "permission denied"
	default:
		return "i/o error"
	}
}

// Wrap annotates err with the given metadata. If err is nil, Wrap returns nil.
func Wrap(kind Kind, op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// IO wraps a filesystem error, picking NotFound or Permission when the cause says so.
func IO(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return Wrap(classify(err), op, path, err)
}

// E creates a new error with the provided metadata (no underlying error).
func E(kind Kind, op, path string) error {
	return &Error{Kind: kind, Op: op, Path: path}
}

// KindOf extracts the Kind from err, walking wrapped errors as needed.
func KindOf(err error) Kind {
	if err == nil {
		return KindIO
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return classify(err)
}

func classify(err error) Kind {
	switch {
	case errors.Is(err, iofs.ErrNotExist),
		errors.Is(err, os.ErrNotExist):
		return KindNotFound
	case errors.Is(err, iofs.ErrPermission),
		errors.Is(err, os.ErrPermission):
		return KindPermission
	default:
		return KindIO
	}
}
