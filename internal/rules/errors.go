package rules

import "errors"

// Domain errors for the rules package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, rules.ErrVersionConflict) {
//	    // reload the draft and retry the commit
//	}
var (
	// ErrVersionConflict is returned when a commit carries a stale version
	// token: another session committed the profile since this one loaded it.
	// Recoverable by reload and retry.
	ErrVersionConflict = errors.New("rules: version conflict")

	// ErrNotFound is returned when a profile has no persisted rule set.
	// Load treats this as an empty rule set; callers rarely see it.
	ErrNotFound = errors.New("rules: not found")
)
