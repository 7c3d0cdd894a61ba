package store

import (
	"errors"
	"fmt"
)

// ErrorKind separates fatal connection failures from per-operation failures.
type ErrorKind int

const (
	// KindConnection covers open, configuration, and migration failures.
	KindConnection ErrorKind = iota + 1
	// KindOperation covers a failed read or write; the caller may retry.
	KindOperation
	// KindContract covers misuse such as filtering on an unindexed field.
	KindContract
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindOperation:
		return "operation"
	case KindContract:
		return "contract"
	default:
		return "unknown"
	}
}

// ErrUnindexedField is returned by List when the filter field is not declared
// in the collection's index set. The store never falls back to a scan.
var ErrUnindexedField = errors.New("field is not indexed")

// Error is the error type returned by the store.
type Error struct {
	Kind       ErrorKind
	Op         string
	Collection Collection
	Key        string
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	target := string(e.Collection)
	if e.Key != "" {
		target = fmt.Sprintf("%s/%s", e.Collection, e.Key)
	}
	if target == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %s: %v", e.Op, target, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsConnection reports whether err is a fatal store connection failure.
func IsConnection(err error) bool {
	return hasKind(err, KindConnection)
}

// IsRetryable reports whether err is a per-operation failure worth retrying.
func IsRetryable(err error) bool {
	return hasKind(err, KindOperation)
}

func hasKind(err error, kind ErrorKind) bool {
	var storeErr *Error
	if errors.As(err, &storeErr) {
		return storeErr.Kind == kind
	}
	return false
}

func connectionError(op string, err error) error {
	return &Error{Kind: KindConnection, Op: op, Err: err}
}
