package profile

import "errors"

// Domain errors for the profile package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, profile.ErrInvalidAlias) {
//	    // reject the mutation, draft unchanged
//	}
var (
	// ErrUnknownProfile is returned when a profile ID is not recognised.
	ErrUnknownProfile = errors.New("profile: unknown profile")

	// ErrProfileReadOnly is returned when mutating a mirrored profile in
	// linked mode. Only the authoritative profile accepts edits.
	ErrProfileReadOnly = errors.New("profile: read-only in linked mode")

	// ErrInvalidMode is returned for a sharing mode other than linked/separate.
	ErrInvalidMode = errors.New("profile: invalid mode")

	// ErrInvalidFilterMode is returned for a filter mode other than include/exclude.
	ErrInvalidFilterMode = errors.New("profile: invalid filter mode")

	// ErrInvalidDecision is returned for an exposure decision other than
	// expose/suppress.
	ErrInvalidDecision = errors.New("profile: invalid decision")

	// ErrInvalidEntityID is returned when an entity ID fails validation.
	ErrInvalidEntityID = errors.New("profile: invalid entity id")

	// ErrInvalidDomain is returned when a domain name fails validation.
	ErrInvalidDomain = errors.New("profile: invalid domain")

	// ErrInvalidAlias is returned when an alias, prefix, or suffix fails
	// validation.
	ErrInvalidAlias = errors.New("profile: invalid alias")

	// ErrTooManyEntities is returned when a bulk operation exceeds the
	// entity limit.
	ErrTooManyEntities = errors.New("profile: too many entities in bulk operation")
)
