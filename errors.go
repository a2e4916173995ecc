package revalcache

import (
	"errors"
	"fmt"
)

var (
	ErrNilBackend  = errors.New("revalcache: backend is required")
	ErrInvalidKind = errors.New("revalcache: invalid value kind")
)

// BackendError wraps a failure returned by the Backend. The cache never
// retries; callers decide whether to treat it as a miss.
type BackendError struct {
	Op  string // "get" or "set"
	Key string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("revalcache: backend %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// RefreshError is what a background refresh failure is logged and hooked
// with. It never reaches the request that triggered the refresh.
type RefreshError struct {
	Key   string
	Err   error
	Panic any // non-nil when the refresh panicked
}

func (e *RefreshError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("revalcache: refresh %q panicked: %v", e.Key, e.Panic)
	}
	return fmt.Sprintf("revalcache: refresh %q: %v", e.Key, e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }
