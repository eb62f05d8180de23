// Package profile defines the data model for assistant exposure rules.
//
// An AssistantProfile scopes one voice assistant backend's configuration
// (Google, Alexa, HomeKit) or the shared Linked profile used when all
// backends mirror a single rule set. A RuleSet carries a profile's domain
// defaults, per-entity overrides, assistant settings, and the version token
// used for optimistic concurrency at commit time.
//
// # Key Types
//
//   - RuleSet: one profile's complete exposure configuration
//   - DomainRule: default decision for an entire entity domain
//   - EntityOverride: per-entity exception plus voice-name shaping
//   - ManagerSettings: global sharing mode and bridge target
//
// Validation of user-supplied values (aliases, entity IDs, domains) lives
// here so a bad value never reaches a draft, a persisted rule set, or a
// generated document.
package profile
