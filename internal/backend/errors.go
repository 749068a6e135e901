package backend

import (
	"errors"
	"fmt"
)

// ErrRPCUnavailable means the named server-side function does not exist on
// this backend; callers fall back to a non-atomic path where one is defined.
var ErrRPCUnavailable = errors.New("rpc function unavailable")

// RejectionError is an explicit backend rejection (validation or conflict).
// The queue treats it the same as a transient error and retries on the next
// trigger, so a permanent rejection retries indefinitely.
type RejectionError struct {
	StatusCode int
	Message    string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("backend rejected request (%d): %s", e.StatusCode, e.Message)
}

// IsRejection reports whether err is an explicit backend rejection.
func IsRejection(err error) bool {
	var rejection *RejectionError
	return errors.As(err, &rejection)
}
