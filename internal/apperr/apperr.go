// Package apperr defines the error taxonomy shared by the stores, the embedding
// service, the search orchestrator and the transports.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers and for wire-level status mapping.
type Kind int

const (
	// KindInternal is any error that does not carry a more specific kind.
	KindInternal Kind = iota
	// KindValidation means caller input violated a contract. Never retried.
	KindValidation
	// KindNotFound means the referenced document does not exist.
	KindNotFound
	// KindDimensionMismatch means vectors of different lengths met in one operation.
	KindDimensionMismatch
	// KindExternalService means the embedding provider or the store failed or timed out.
	KindExternalService
)

// String returns the kind name used in structured failure descriptions.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindNotFound:
		return "not_found"
	case KindDimensionMismatch:
		return "dimension_mismatch"
	case KindExternalService:
		return "external_service_error"
	default:
		return "internal_error"
	}
}

// Error is a classified error. Op names the operation that failed, Msg is the
// human message and Err, when set, is the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Validation returns a KindValidation error with a formatted message.
func Validation(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// NotFound returns a KindNotFound error with a formatted message.
func NotFound(op, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Dimension returns a KindDimensionMismatch error describing the two lengths.
func Dimension(op string, got, want int) error {
	return &Error{
		Kind: KindDimensionMismatch,
		Op:   op,
		Msg:  fmt.Sprintf("vector dimension mismatch: got %d, expected %d", got, want),
	}
}

// External wraps err as a KindExternalService error. A nil err yields nil.
// Errors that are already classified keep their kind.
func External(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: KindExternalService, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// Is reports whether err carries kind k.
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// Message returns the human message of the first *Error in the chain,
// falling back to err.Error().
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		if ae.Msg != "" {
			return ae.Msg
		}
		if ae.Err != nil {
			return ae.Err.Error()
		}
	}
	return err.Error()
}
