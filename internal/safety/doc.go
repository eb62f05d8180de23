// Package safety gates every artifact write.
//
// Two checks run before any generated file reaches disk: ValidatePath
// confines the target to the configured output directory, and
// ValidateContent rejects YAML constructs that would make the platform
// include foreign files or run code when it loads the artifact. Both are
// pure functions so the commit pipeline can run them over the full
// artifact set before writing anything.
package safety
