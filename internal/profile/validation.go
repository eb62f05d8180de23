package profile

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Validation limits. Aliases become voice-visible names and entity IDs end
// up inside generated configuration documents, so both are length- and
// character-constrained before they ever reach a draft.
const (
	// MaxAliasLength bounds aliases, prefixes, and suffixes.
	MaxAliasLength = 128

	// MaxEntityIDLength bounds entity identifiers.
	MaxEntityIDLength = 255

	// MaxBulkEntities bounds the number of entities in one bulk operation.
	MaxBulkEntities = 500
)

// entityIDPattern matches "domain.object_id" identifiers.
var entityIDPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*\.[a-z0-9_]+$`)

// domainPattern matches bare domain names.
var domainPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// knownProfiles is the set of valid profile IDs.
var knownProfiles = map[ID]struct{}{
	Linked:  {},
	Google:  {},
	Alexa:   {},
	HomeKit: {},
}

// ValidateProfileID checks that a profile ID is one of the known profiles.
func ValidateProfileID(id ID) error {
	if _, ok := knownProfiles[id]; ok {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownProfile, id)
}

// ValidateMode checks a sharing mode.
func ValidateMode(mode Mode) error {
	switch mode {
	case ModeLinked, ModeSeparate:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
}

// ValidateFilterMode checks a filter mode.
func ValidateFilterMode(mode FilterMode) error {
	switch mode {
	case FilterExclude, FilterInclude:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidFilterMode, mode)
}

// ValidateDecision checks an exposure decision.
func ValidateDecision(decision Decision) error {
	switch decision {
	case DecisionExpose, DecisionSuppress:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidDecision, decision)
}

// ValidateEntityID checks an entity identifier.
// Format is "domain.object_id", lowercase alphanumeric with underscores.
func ValidateEntityID(entityID string) error {
	if entityID == "" {
		return fmt.Errorf("%w: empty", ErrInvalidEntityID)
	}
	if len(entityID) > MaxEntityIDLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidEntityID, MaxEntityIDLength)
	}
	if !entityIDPattern.MatchString(entityID) {
		return fmt.Errorf("%w: %q", ErrInvalidEntityID, entityID)
	}
	return nil
}

// ValidateEntityIDs checks a batch of entity identifiers and the bulk limit.
func ValidateEntityIDs(entityIDs []string) error {
	if len(entityIDs) == 0 {
		return fmt.Errorf("%w: no entities given", ErrInvalidEntityID)
	}
	if len(entityIDs) > MaxBulkEntities {
		return fmt.Errorf("%w: %d exceeds limit of %d", ErrTooManyEntities, len(entityIDs), MaxBulkEntities)
	}
	for _, id := range entityIDs {
		if err := ValidateEntityID(id); err != nil {
			return err
		}
	}
	return nil
}

// ValidateDomain checks a bare domain name.
func ValidateDomain(domain string) error {
	if domain == "" {
		return fmt.Errorf("%w: empty", ErrInvalidDomain)
	}
	if len(domain) > MaxEntityIDLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidDomain, MaxEntityIDLength)
	}
	if !domainPattern.MatchString(domain) {
		return fmt.Errorf("%w: %q", ErrInvalidDomain, domain)
	}
	return nil
}

// ValidateAlias checks a voice-visible alias, prefix, or suffix.
// Empty strings are valid (they clear the field). Control characters and
// YAML-hostile leading characters are rejected: aliases originate as user
// input but are rendered into generated documents.
func ValidateAlias(alias string) error {
	if alias == "" {
		return nil
	}
	if len(alias) > MaxAliasLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidAlias, MaxAliasLength)
	}
	for _, r := range alias {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: contains control character", ErrInvalidAlias)
		}
	}
	trimmed := strings.TrimSpace(alias)
	if trimmed != "" && (strings.HasPrefix(trimmed, "!") || strings.HasPrefix(trimmed, "&") || strings.HasPrefix(trimmed, "*")) {
		return fmt.Errorf("%w: must not start with %q", ErrInvalidAlias, trimmed[:1])
	}
	return nil
}

// ValidateOverride checks every user-supplied field of an entity override.
func ValidateOverride(override EntityOverride) error {
	if err := ValidateEntityID(override.EntityID); err != nil {
		return err
	}
	if override.Decision != nil {
		if err := ValidateDecision(*override.Decision); err != nil {
			return err
		}
	}
	for _, field := range []string{override.Alias, override.Prefix, override.Suffix} {
		if err := ValidateAlias(field); err != nil {
			return err
		}
	}
	return nil
}
