package incremental

import (
	"git.home.luguber.info/inful/incremental/internal/foundation/errors"
	"git.home.luguber.info/inful/incremental/internal/git"
)

// Sentinel errors for use with errors.Is. Returned errors carry extra context but
// still match.
var (
	ErrNotQueried    = errors.PreconditionError("call IsNew first").Build()
	ErrModeMismatch  = errors.PreconditionError("file metadata is not captured in source-control mode").Build()
	ErrToolMissing   = git.ErrToolMissing
	ErrNotRepository = git.ErrNotRepository
)

// IsPrecondition reports a call made in the wrong state or environment.
func IsPrecondition(err error) bool {
	return errors.HasCategory(err, errors.CategoryPrecondition)
}

// IsNotFound reports a queried file that does not exist.
func IsNotFound(err error) bool {
	return errors.HasCategory(err, errors.CategoryNotFound)
}

// IsCorruptState reports a tracking file that exists but cannot be parsed.
func IsCorruptState(err error) bool {
	return errors.HasCategory(err, errors.CategoryCorruptState)
}

// IsExternalToolFailure reports a failed source-control invocation.
func IsExternalToolFailure(err error) bool {
	return errors.HasCategory(err, errors.CategoryExternalTool)
}

// IsValidation reports invalid construction options.
func IsValidation(err error) bool {
	return errors.HasCategory(err, errors.CategoryValidation)
}
