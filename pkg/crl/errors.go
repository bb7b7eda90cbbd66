package crl

import (
	"fmt"

	"github.com/cockroachdb/errors"

	pkicrypto "github.com/remiblancher/qcrl/pkg/crypto"
)

// ErrorKind tags the failure mode of a decode or validation call.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindMalformedInput
	KindIncompleteStructure
	KindUnsupportedAlgorithm
	KindInvalidKey
)

// String implements fmt.Stringer.
func (k ErrorKind) String() string {
	switch k {
	case KindMalformedInput:
		return "malformed_input"
	case KindIncompleteStructure:
		return "incomplete_structure"
	case KindUnsupportedAlgorithm:
		return "unsupported_algorithm"
	case KindInvalidKey:
		return "invalid_key"
	default:
		return "unknown"
	}
}

// Sentinel errors for CRL operations.
// Use errors.Is() to check for these errors through the error chain.
var (
	// ErrMalformedInput indicates the bytes are not a recognizable CRL.
	ErrMalformedInput = errors.New("malformed CRL input")

	// ErrIncompleteStructure indicates a recognizable CRL that is truncated
	// or missing a required field.
	ErrIncompleteStructure = errors.New("incomplete CRL structure")

	// ErrUnsupportedAlgorithm indicates a signature algorithm that is unknown
	// or not enabled on the resolver.
	ErrUnsupportedAlgorithm = errors.New("unsupported signature algorithm")

	// ErrInvalidKey indicates a candidate public key that cannot be used.
	ErrInvalidKey = pkicrypto.ErrInvalidKey
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindMalformedInput:
		return ErrMalformedInput
	case KindIncompleteStructure:
		return ErrIncompleteStructure
	case KindUnsupportedAlgorithm:
		return ErrUnsupportedAlgorithm
	case KindInvalidKey:
		return ErrInvalidKey
	}
	return nil
}

// Error is returned by every fallible operation of the package.
// It supports errors.Is() against the sentinel of its Kind.
type Error struct {
	Op   string    // Operation: "decode", "resolve", "verify", "validate"
	Kind ErrorKind // Failure mode
	Err  error     // Underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("crl %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("crl %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel matching the error kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

func newError(op string, kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Op: op, Kind: kind, Err: errors.Newf(format, args...)}
}

func malformed(format string, args ...interface{}) *Error {
	return newError(opDecode, KindMalformedInput, format, args...)
}

func incomplete(format string, args ...interface{}) *Error {
	return newError(opDecode, KindIncompleteStructure, format, args...)
}

// KindOf returns the kind of a package error, or KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
