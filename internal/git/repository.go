package git

import (
	"sort"
	"strings"

	"git.home.luguber.info/inful/incremental/internal/foundation/errors"
	"git.home.luguber.info/inful/incremental/internal/foundation/normalization"
)

// Repository is the source-control surface used by the tracker.
type Repository interface {
	// Available fails with ErrToolMissing when the backend cannot run.
	Available() error
	// TopLevel returns the repository root, failing with ErrNotRepository outside one.
	TopLevel() (string, error)
	// Head resolves the current HEAD commit identifier.
	Head() (string, error)
	// ChangedSince lists repository-relative paths that differ between commit and HEAD.
	ChangedSince(commit string) ([]string, error)
}

// Backend selects a Repository implementation.
type Backend string

const (
	BackendCLI    Backend = "cli"
	BackendNative Backend = "native"
)

const (
	msgToolMissing   = "git is not installed"
	msgNotRepository = "not a git repository"
)

// Sentinels for errors.Is; returned errors carry additional context.
var (
	ErrToolMissing   = errors.PreconditionError(msgToolMissing).Build()
	ErrNotRepository = errors.PreconditionError(msgNotRepository).Build()
)

var backends = normalization.NewNormalizer("backend", map[string]Backend{
	string(BackendCLI):    BackendCLI,
	string(BackendNative): BackendNative,
	"go-git":              BackendNative,
}, BackendCLI)

// ParseBackend normalizes a backend name; the empty string selects BackendCLI.
func ParseBackend(s string) (Backend, error) {
	return backends.Normalize(s)
}

// Open returns a Repository rooted at dir for the given backend.
func Open(backend Backend, dir string) (Repository, error) {
	switch backend {
	case "", BackendCLI:
		return NewCLI(dir), nil
	case BackendNative:
		return NewNative(dir), nil
	default:
		return nil, errors.ValidationError("unknown git backend").WithContext("backend", string(backend)).Build()
	}
}

func validateCommit(commit string) error {
	if commit == "" || strings.HasPrefix(commit, "-") || strings.ContainsAny(commit, " \t\n") {
		return errors.ValidationError("invalid commit identifier").WithContext("commit", commit).Build()
	}
	return nil
}

// sortedUnique sorts paths and drops duplicates and empty entries.
func sortedUnique(paths []string) []string {
	sort.Strings(paths)
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" || (len(out) > 0 && out[len(out)-1] == p) {
			continue
		}
		out = append(out, p)
	}
	return out
}
