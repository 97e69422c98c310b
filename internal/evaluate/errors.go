// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evaluate

import (
	"errors"
	"fmt"
)

// TransientError wraps a retryable scoring failure: rate limiting, a
// connection problem, or an upstream status error. Any other failure
// class is terminal for the ticket and is never retried.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// ExhaustedError reports that every retry attempt for one ticket failed.
// It carries the last observed cause.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("evaluation failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}
