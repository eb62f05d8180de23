// Package resolve computes final per-entity exposure decisions from a rule
// set and the entity catalog.
//
// Resolve is a pure function over immutable snapshots: it holds no locks,
// performs no I/O, and may be invoked freely for preview without mutual
// exclusion. The commit pipeline calls the same function, so what the
// operator previews is exactly what gets compiled.
package resolve
