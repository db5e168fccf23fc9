package hiring

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies why an operation was rejected
type Kind int

const (
	KindUnknown Kind = iota
	// KindArgument means caller supplied input failed validation
	KindArgument
	// KindCredentials means caller is not a reviewer or holds no role on the interview
	KindCredentials
	// KindContext means action is not legal in the current phase or a business entity is missing
	KindContext
	// KindInternalData means the store reported something we did not expect
	KindInternalData
	// KindTransport means chat transport failed
	KindTransport
	// KindInternal is an invariant violation
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindArgument:
		return "ArgumentError"
	case KindCredentials:
		return "CredentialsError"
	case KindContext:
		return "ContextError"
	case KindInternalData:
		return "InternalDataError"
	case KindTransport:
		return "TransportError"
	case KindInternal:
		return "InternalError"
	default:
		return "UnknownError"
	}
}

// internal kinds are never shown to users verbatim
func (k Kind) internal() bool {
	return k == KindInternalData || k == KindInternal || k == KindUnknown
}

var (
	// ErrNotFound is returned by the store when a record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned by the store when a unique constraint is violated
	ErrConflict = errors.New("unique constraint violation")
	// ErrTimedOut is returned when nobody answered a prompt before its deadline
	ErrTimedOut = errors.New("timed out waiting for response")
)

const genericMessage = "Something went wrong on our side, the incident has been logged."

// Error is the only error type returned by Service operations.
type Error struct {
	Kind Kind
	// Msg is short human readable reason
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Cause makes errors.Cause stop at the classified error.
func (e *Error) Cause() error { return e.Err }

// Errorf creates classified error without cause
func Errorf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrapf classifies err. A nil err gives nil.
func Wrapf(err error, kind Kind, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns kind of the first classified error in chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsTimeout reports whether err ends a flow because nobody answered.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimedOut)
}

// UserMessage returns text that is safe to show to the person who issued the command.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if IsTimeout(err) {
		return "Timed out! Nothing was changed."
	}
	var e *Error
	if !errors.As(err, &e) || e.Kind.internal() {
		return genericMessage
	}
	return e.Msg
}

// storeErr translates a store failure. Not found and conflicts become the given
// business kind with msg, everything else is an internal data error.
func storeErr(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) {
		return &Error{Kind: kind, Msg: msg, Err: err}
	}
	return &Error{Kind: KindInternalData, Msg: "database error", Err: err}
}

// dataErr wraps unexpected store failures.
func dataErr(err error, op string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: KindInternalData, Msg: "database error", Err: errors.Wrap(err, op)}
}
