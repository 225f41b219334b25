// Package meshapi holds the error taxonomy shared by the resolver, the
// state store, and the provisioning service, plus the HTTP error codes
// each kind maps onto.
package meshapi

import "fmt"

// Kind identifies one of the error categories in the design's error table.
type Kind string

const (
	KindValidation       Kind = "VALIDATION_ERROR"
	KindInvalidCidr      Kind = "INVALID_CIDR"
	KindCapacityExceeded Kind = "CAPACITY_EXCEEDED"
	KindUnknownGateway   Kind = "UNKNOWN_GATEWAY"
	KindMissingKey       Kind = "MISSING_KEY"
	KindInvalidKey       Kind = "INVALID_KEY"
	KindRevisionConflict Kind = "REVISION_CONFLICT"
	KindLockTimeout      Kind = "LOCK_TIMEOUT"
	KindCorruptState     Kind = "CORRUPT_STATE"
	KindRuntimeError     Kind = "RUNTIME_ERROR"
	KindNotExists        Kind = "NOT_EXISTS"
	KindApplyFailed      Kind = "APPLY_FAILED"
	KindInternal         Kind = "INTERNAL_ERROR"
)

// Error is the sum type every component-level failure is expressed as.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]interface{}
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a bare Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind around an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// WithDetails attaches structured detail fields (e.g. field-level validation
// errors) and returns the same Error for chaining.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	e.Details = details
	return e
}

// RevisionConflict is the dedicated payload for optimistic-concurrency
// failures; it is always surfaced wrapped in an *Error of KindRevisionConflict.
type RevisionConflict struct {
	Expected uint64
	Received uint64
}

func (r RevisionConflict) Error() string {
	return fmt.Sprintf("revision conflict: expected %d, received %d", r.Expected, r.Received)
}

// NewRevisionConflict builds the *Error carrying a RevisionConflict cause.
func NewRevisionConflict(expected, received uint64) *Error {
	return Wrap(KindRevisionConflict, "revision conflict", RevisionConflict{Expected: expected, Received: received})
}

// As reports whether err is (or wraps) a meshapi *Error of the given kind.
func As(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if me, ok := err.(*Error); ok {
			e = me
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}

// HTTPStatus maps a Kind onto the status code the §7 table prescribes.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindInvalidCidr, KindCapacityExceeded, KindUnknownGateway, KindMissingKey, KindInvalidKey:
		return 400
	case KindRevisionConflict:
		return 409
	case KindNotExists:
		return 404
	case KindApplyFailed, KindLockTimeout, KindCorruptState, KindRuntimeError, KindInternal:
		return 500
	default:
		return 500
	}
}
