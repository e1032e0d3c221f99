// Package errors provides the classified error primitives used across the tracker.
//
// Every failure surfaced to callers carries a category that tells the caller what went
// wrong without string parsing:
//   - ErrorCategory: precondition, not_found, corrupt_state, external_tool, validation, ...
//   - ErrorSeverity: impact level (fatal, error, warning, info)
//   - ClassifiedError: structured error with category, severity, cause and context
//   - ErrorBuilder: fluent API for creating classified errors
//   - CLIErrorAdapter: exit codes and user-facing formatting for the command line
//
// Example usage:
//
//	err := errors.WrapError(cause, errors.CategoryExternalTool, "git diff failed").
//		WithContext("commit", commit).
//		WithContext("output", stderr).
//		Build()
package errors
