// Package draft owns the uncommitted working copy of every profile's rule
// set.
//
// A draft opens lazily from committed state, buffers edits in memory, and
// carries the version token it was loaded at. Nothing touches the rule
// store or any generated artifact until the commit pipeline snapshots the
// draft; discarding a draft simply reloads committed state. Edits and
// commits for the same profile serialise on a per-profile lock while
// different profiles proceed independently.
package draft
