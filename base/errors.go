package base

import "github.com/cockroachdb/errors"

// Kind classifies a failure the way callers branch on it: lookups miss, on-
// disk state is malformed, an environment call failed, a capability is
// unavailable, or the caller misused the API. See spec section 7.
type Kind int

const (
	KindNotFound Kind = iota
	KindCorruption
	KindIOError
	KindNotSupported
	KindInvalidArgument
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindCorruption:
		return "corruption"
	case KindIOError:
		return "I/O error"
	case KindNotSupported:
		return "not supported"
	case KindInvalidArgument:
		return "invalid argument"
	default:
		return "unknown"
	}
}

// Sentinel errors, one per Kind, used with errors.Mark / errors.Is so
// wrapped and annotated errors still compare equal to these by kind.
var (
	ErrNotFound         = errors.New("ldb: not found")
	ErrCorruption       = errors.New("ldb: corruption")
	ErrIOError          = errors.New("ldb: I/O error")
	ErrNotSupported     = errors.New("ldb: not supported")
	ErrInvalidArgument  = errors.New("ldb: invalid argument")
)

func sentinelFor(k Kind) error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindCorruption:
		return ErrCorruption
	case KindIOError:
		return ErrIOError
	case KindNotSupported:
		return ErrNotSupported
	default:
		return ErrInvalidArgument
	}
}

// Errorf builds a Kind-tagged error carrying a formatted message. Corruption
// and IOError are additionally given a stack trace, since those are the
// kinds a reader of the LOG file needs to localize without a repro.
func Errorf(k Kind, format string, args ...interface{}) error {
	err := errors.Mark(errors.Newf(format, args...), sentinelFor(k))
	if k == KindCorruption || k == KindIOError {
		err = errors.WithStack(err)
	}
	return err
}

// WrapIOError wraps err, an environment failure, as a Kind-tagged IOError.
func WrapIOError(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrapf(err, format, args...), ErrIOError)
}

// Is reports whether err is of the given kind.
func Is(err error, k Kind) bool {
	return errors.Is(err, sentinelFor(k))
}

// IsNotFound reports whether err is (or wraps) ErrNotFound. This is the
// error most callers inspect after Get.
func IsNotFound(err error) bool { return Is(err, KindNotFound) }
