package retry

import (
	"errors"
	"strings"

	"asset-sweep/internal/catalog"
)

// Class buckets a deletion failure for the retry policy.
type Class int

const (
	// ClassUnknown is anything we cannot attribute to the remote
	// catalog. Fail fast rather than loop on it.
	ClassUnknown Class = iota
	// ClassBenign means the desired end state already holds (gone) or
	// the caller cannot act further (no permission). Treated as success.
	ClassBenign
	// ClassBlocked means the container still holds children. Retried
	// after a short fixed delay; discovery ordering is a heuristic, so
	// a container may legitimately not be empty yet when its turn comes.
	ClassBlocked
	// ClassTransient covers rate limiting and generic remote faults.
	// Retried with exponential backoff.
	ClassTransient
)

func (c Class) String() string {
	switch c {
	case ClassBenign:
		return "benign"
	case ClassBlocked:
		return "blocked"
	case ClassTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Classify maps a DeleteNode failure onto a Class. Typed sentinels win;
// otherwise any error from the catalog layer is a generic remote fault
// (transient), with a message-substring fallback for stores that return
// opaque errors.
func Classify(err error) Class {
	if err == nil {
		return ClassUnknown
	}

	switch {
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, catalog.ErrPermissionDenied):
		return ClassBenign
	case errors.Is(err, catalog.ErrNotEmpty):
		return ClassBlocked
	case errors.Is(err, catalog.ErrRateLimited):
		return ClassTransient
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "not found"), strings.Contains(msg, "permission denied"):
		return ClassBenign
	case strings.Contains(msg, "delete its children"), strings.Contains(msg, "not empty"):
		return ClassBlocked
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "quota"),
		strings.Contains(msg, "too many requests"):
		return ClassTransient
	}

	var re *catalog.RemoteError
	if errors.As(err, &re) {
		return ClassTransient
	}
	return ClassUnknown
}
