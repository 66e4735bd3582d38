// Package werror defines the error-kind taxonomy shared across wapm's
// subsystems. Every user-facing failure carries one of these kinds so the
// top-level command handler can pick a stable exit code and a distinct
// message style without re-deriving intent from error text.
package werror

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies the class of failure. Each maps to a distinct process
// exit code (see ExitCode).
type Kind int

const (
	// KindUnknown is never assigned deliberately; it is the zero value
	// returned when an error was never wrapped with a Kind.
	KindUnknown Kind = iota
	KindConfig
	KindNetwork
	KindRegistry
	KindAuth
	KindResolution
	KindManifest
	KindLockfile
	KindSignatureMissing
	KindSignatureMismatch
	KindKeyRevoked
	KindFilesystemIO
	KindRuntimeMissing
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "Config"
	case KindNetwork:
		return "Network"
	case KindRegistry:
		return "Registry"
	case KindAuth:
		return "Auth"
	case KindResolution:
		return "Resolution"
	case KindManifest:
		return "Manifest"
	case KindLockfile:
		return "Lockfile"
	case KindSignatureMissing:
		return "SignatureMissing"
	case KindSignatureMismatch:
		return "SignatureMismatch"
	case KindKeyRevoked:
		return "KeyRevoked"
	case KindFilesystemIO:
		return "FilesystemIO"
	case KindRuntimeMissing:
		return "RuntimeMissing"
	case KindCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// ExitCode returns the process exit code associated with the kind. Codes
// start at 1 and follow the order the kinds are listed in spec section 7;
// KindUnknown exits 1 like any other uncategorized failure.
func (k Kind) ExitCode() int {
	if k == KindUnknown {
		return 1
	}
	return int(k)
}

// wrapped is an error tagged with a Kind, carrying a message and the
// wrapped cause's full chain (via github.com/pkg/errors, which also
// attaches a stack trace at the point of Wrap).
type wrapped struct {
	kind  Kind
	msg   string
	cause error
}

func (w *wrapped) Error() string {
	if w.cause == nil || w.cause.Error() == w.msg {
		return w.msg
	}
	return fmt.Sprintf("%s: %v", w.msg, w.cause)
}

func (w *wrapped) Unwrap() error { return w.cause }

// Wrap attaches kind and a human-readable message to err, capturing a
// stack trace at the call site. If err is nil, Wrap returns nil.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &wrapped{kind: kind, msg: msg, cause: errors.WithStack(err)}
}

// Wrapf is Wrap with fmt.Sprintf-style formatting.
func Wrapf(kind Kind, err error, format string, args ...interface{}) error {
	return Wrap(kind, err, fmt.Sprintf(format, args...))
}

// New creates a new Kind-tagged error that wraps no other error. Its
// cause only carries the stack trace captured at the call site, so
// Error() returns msg alone.
func New(kind Kind, msg string) error {
	return &wrapped{kind: kind, msg: msg, cause: errors.New(msg)}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(kind Kind, format string, args ...interface{}) error {
	return New(kind, fmt.Sprintf(format, args...))
}

// KindOf walks err's Unwrap chain and returns the first Kind attached to
// it, or KindUnknown if none of the chain was ever wrapped by this
// package.
func KindOf(err error) Kind {
	for err != nil {
		if w, ok := err.(*wrapped); ok {
			return w.kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return KindUnknown
}

// StackTrace renders the deepest stack trace found in err's chain, for
// appending to the on-disk log file. Returns "" if no stack is attached.
func StackTrace(err error) string {
	type stackTracer interface {
		StackTrace() errors.StackTrace
	}
	trace := ""
	for err != nil {
		if st, ok := err.(stackTracer); ok {
			trace = fmt.Sprintf("%+v", st.StackTrace())
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return trace
}
