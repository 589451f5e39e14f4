package catalog

import (
	"errors"
	"fmt"
)

// Typed failures returned by the remote catalog. Callers classify
// deletion failures with errors.Is against these sentinels.
var (
	ErrNotFound         = errors.New("asset not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotEmpty         = errors.New("container not empty")
	ErrRateLimited      = errors.New("rate limited")
	ErrAlreadyExists    = errors.New("asset already exists")
)

// RemoteError wraps a failure returned by the catalog API. Err carries
// the matching sentinel when the failure could be classified; otherwise
// the error is a generic remote fault and treated as transient.
type RemoteError struct {
	Op         string
	Path       string
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v: %s", e.Op, e.Path, e.Err, e.Message)
	}
	return fmt.Sprintf("%s %s: remote error (status %d): %s", e.Op, e.Path, e.StatusCode, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}
