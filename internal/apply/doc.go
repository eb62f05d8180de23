// Package apply runs the commit pipeline.
//
// A commit turns one profile's draft into durable state and backend
// artifacts: resolve against the live catalog, compile every affected
// artifact, validate paths and content, claim the version token in the
// rule store, then write files atomically and deliver the HomeKit
// payload. Validation failures and version conflicts abort before any
// file changes; profiles commit independently of each other.
//
// The pipeline never restarts the platform. File-backed artifacts take
// effect on the operator's explicit restart; HomeKit live sync takes
// effect immediately.
package apply
