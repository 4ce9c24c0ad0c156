package armada

import "errors"

// Error taxonomy. Components wrap these with fmt.Errorf("...: %w") and callers classify with
// errors.Is.
var (
	// ErrTransientFetch marks network or upstream status failures during feed or media fetches.
	ErrTransientFetch = errors.New("transient fetch error")
	// ErrResolution marks references from which no image could be derived.
	ErrResolution = errors.New("resolution error")
	// ErrValidation marks images rejected by the size or aspect policy.
	ErrValidation = errors.New("validation error")
	// ErrPersistence marks blob or metadata write failures.
	ErrPersistence = errors.New("persistence error")
	// ErrDuplicate marks a metadata primary-key conflict. It is informational, not a failure.
	ErrDuplicate = errors.New("duplicate record")
	// ErrConfiguration marks invalid limits or paths detected at construction.
	ErrConfiguration = errors.New("configuration error")
)

// Kind returns a short label for err suitable for log fields and metric labels.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrDuplicate):
		return "duplicate"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrTransientFetch):
		return "transient_fetch"
	case errors.Is(err, ErrResolution):
		return "resolution"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	default:
		return "unknown"
	}
}
