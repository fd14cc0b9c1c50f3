package titulky

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type ErrorKind int

const (
	// ErrAuthFailure means the site rejected the credentials.
	ErrAuthFailure ErrorKind = iota
	// ErrCaptchaRequired means the site wants a human verification before
	// it hands out more downloads.
	ErrCaptchaRequired
	ErrDownloadLinkMissing
	// ErrDownloadTooSmall is returned for payloads below minArchiveSize,
	// which the site serves instead of the archive when throttling.
	ErrDownloadTooSmall
	ErrArchiveCorrupt
	ErrNetwork
	ErrParse
)

func (k ErrorKind) String() string {
	switch k {
	case ErrAuthFailure:
		return "AuthFailure"
	case ErrCaptchaRequired:
		return "CaptchaRequired"
	case ErrDownloadLinkMissing:
		return "DownloadLinkMissing"
	case ErrDownloadTooSmall:
		return "DownloadTooSmall"
	case ErrArchiveCorrupt:
		return "ArchiveCorrupt"
	case ErrNetwork:
		return "Network"
	case ErrParse:
		return "Parse"
	default:
		return "Unknown"
	}
}

// Limited reports whether the kind means the site is refusing downloads for
// now rather than something being broken.
func (k ErrorKind) Limited() bool {
	return k == ErrCaptchaRequired || k == ErrDownloadTooSmall
}

type Error struct {
	Kind    ErrorKind
	Message string
	Context map[string]any
	Cause   error
}

func NewError(kind ErrorKind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Context: make(map[string]any),
	}
}

func WrapError(err error, kind ErrorKind, message string) *Error {
	e := NewError(kind, message)
	e.Cause = err
	return e
}

func (e *Error) Error() string {
	parts := []string{fmt.Sprintf("[%s] %s", e.Kind, e.Message)}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ctxParts := make([]string, 0, len(keys))
		for _, k := range keys {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, "context: "+strings.Join(ctxParts, ", "))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) WithContext(key string, value any) *Error {
	e.Context[key] = value
	return e
}

// IsKind reports whether any error in err's chain is an *Error of kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
