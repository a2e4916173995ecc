package store

import "fmt"

// InvalidateError reports a failed tag or path invalidation. Path
// invalidation bumps one generation per kind, so several bumps can fail.
type InvalidateError struct {
	Target string // "tag:<t>" or "path:<p>"
	Errs   []error
}

func (e *InvalidateError) Error() string {
	switch len(e.Errs) {
	case 0:
		return fmt.Sprintf("invalidate %q: unknown error", e.Target)
	case 1:
		return fmt.Sprintf("invalidate %q: gen bump failed: %v", e.Target, e.Errs[0])
	default:
		return fmt.Sprintf("invalidate %q: %d gen bumps failed: first=%v", e.Target, len(e.Errs), e.Errs[0])
	}
}

func (e *InvalidateError) Unwrap() []error { return e.Errs }
