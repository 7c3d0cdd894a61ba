package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrParse marks a model reply that was empty or did not satisfy the
	// requested contract.
	ErrParse = errors.New("failed to parse response")
	// ErrUnsupportedCategory is returned when media cannot be interpreted.
	ErrUnsupportedCategory = errors.New("unsupported user content type")
)

// GatewayError is a failed model call. Status is the HTTP status when the
// provider answered, zero for transport failures.
type GatewayError struct {
	Op     string
	Status int
	Err    error
}

func (e *GatewayError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("llm %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("llm %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
