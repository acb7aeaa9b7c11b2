package index

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds. Every failure returned by this package matches exactly one of
// them with errors.Is.
var (
	ErrDuplicateVersion       = errors.New("duplicate version")
	ErrUnresolvedDependency   = errors.New("unresolved dependency")
	ErrPackageNotFound        = errors.New("package not found")
	ErrVersionNotFound        = errors.New("version not found")
	ErrAlreadyInState         = errors.New("already in state")
	ErrIndexCorrupt           = errors.New("index corrupt")
	ErrCorruptRecord          = errors.New("corrupt record")
	ErrLockUnavailable        = errors.New("lock unavailable")
	ErrLockFailed             = errors.New("lock failed")
	ErrCommitFailed           = errors.New("commit failed")
	ErrInvalidName            = errors.New("invalid name")
	ErrChecksumMismatch       = errors.New("checksum mismatch")
	ErrMissingArtifact        = errors.New("missing artifact")
	ErrMissingDependency      = errors.New("missing dependency")
	ErrUnsatisfiedRequirement = errors.New("unsatisfied requirement")
	ErrMisplacedFile          = errors.New("misplaced file")
	ErrValidationFailed       = errors.New("validation failed")
)

// Error is a failure of one of the kinds above with a user-facing message.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

// Is matches the error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func wrapError(kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// kindLabel turns a kind into a metric label, e.g. "duplicate_version".
func kindLabel(kind error) string {
	b := []byte(kind.Error())
	for i, c := range b {
		if c == ' ' {
			b[i] = '_'
		}
	}
	return string(b)
}
