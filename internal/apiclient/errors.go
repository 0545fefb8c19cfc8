package apiclient

import (
	"errors"
	"fmt"
)

// Kind classifies a failed API call.
type Kind int

const (
	// KindUnauthorized is a 401: the session is missing or expired.
	KindUnauthorized Kind = iota + 1
	// KindNetwork means no HTTP response was received.
	KindNetwork
	// KindRejected is a non-2xx response, or a 2xx with success=false.
	KindRejected
	// KindMalformed is a 2xx response whose body could not be decoded.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindNetwork:
		return "network"
	case KindRejected:
		return "rejected"
	case KindMalformed:
		return "malformed"
	}
	return "unknown"
}

// Error is returned by every Client call that does not succeed. Fields holds
// per-field messages keyed by the server's wire names, when it sent any.
type Error struct {
	Op      string
	Kind    Kind
	Status  int
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Status != 0:
		return fmt.Sprintf("%s: %s (%d): %s", e.Op, e.Kind, e.Status, e.Message)
	case e.Message != "":
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of an *Error anywhere in err's chain, or 0.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return 0
}

// MessageOf returns the server-provided message of an *Error in err's chain.
func MessageOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

// FieldErrorsOf returns the per-field messages of an *Error in err's chain.
func FieldErrorsOf(err error) map[string]string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Fields
	}
	return nil
}
