// Package errs defines the server's error taxonomy.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by how the server reacts to it.
type Kind int

const (
	// Configuration errors are fatal and abort construction of a component.
	Configuration Kind = iota + 1
	// Resource errors come from acquiring OS resources (accept, epoll_ctl).
	// The operation is abandoned, the dispatcher keeps running.
	Resource
	// NotFound means content could not be resolved; it becomes an HTTP 404.
	NotFound
	// Timeout marks a connection closed for being idle too long.
	Timeout
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration"
	case Resource:
		return "resource"
	case NotFound:
		return "not found"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error carries a Kind, the operation that failed and the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds an *Error.
func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Configf builds a Configuration error from a format string.
func Configf(op, format string, args ...any) error {
	return &Error{Kind: Configuration, Op: op, Err: fmt.Errorf(format, args...)}
}

// Is reports whether any error in err's chain is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}
