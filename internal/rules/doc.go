// Package rules is the rule store: the sole owner of persisted exposure
// configuration.
//
// Each assistant profile has one versioned record holding its domain rules,
// entity overrides, and assistant settings. Commit replaces the whole
// record atomically and only when the caller's version token matches the
// stored version; a stale token fails with ErrVersionConflict so the caller
// reloads before retrying. This optimistic check is the only safeguard
// against lost updates from two sessions editing the same profile.
package rules
