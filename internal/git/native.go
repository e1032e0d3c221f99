package git

import (
	stderrors "errors"
	"log/slog"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"git.home.luguber.info/inful/incremental/internal/foundation/errors"
	"git.home.luguber.info/inful/incremental/internal/logfields"
)

// Native implements Repository with go-git. It needs no git binary.
type Native struct {
	dir    string
	repo   *git.Repository
	logger *slog.Logger
}

// NewNative creates a go-git backend for dir. The repository is opened lazily.
func NewNative(dir string) *Native {
	return &Native{dir: dir, logger: slog.Default()}
}

// WithLogger sets a custom logger.
func (n *Native) WithLogger(logger *slog.Logger) *Native { n.logger = logger; return n }

// Available always succeeds: go-git is linked in.
func (n *Native) Available() error { return nil }

func (n *Native) open() (*git.Repository, error) {
	if n.repo != nil {
		return n.repo, nil
	}
	repo, err := git.PlainOpenWithOptions(n.dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if stderrors.Is(err, git.ErrRepositoryNotExists) {
			return nil, errors.WrapError(err, errors.CategoryPrecondition, msgNotRepository).
				WithContext("dir", n.dir).
				Build()
		}
		return nil, errors.WrapError(err, errors.CategoryExternalTool, "failed to open repository").
			WithContext("dir", n.dir).
			Build()
	}
	n.repo = repo
	return repo, nil
}

// TopLevel returns the work tree root.
func (n *Native) TopLevel() (string, error) {
	repo, err := n.open()
	if err != nil {
		return "", err
	}
	wt, err := repo.Worktree()
	if err != nil {
		if stderrors.Is(err, git.ErrIsBareRepository) {
			return "", errors.WrapError(err, errors.CategoryPrecondition, msgNotRepository).
				WithContext("dir", n.dir).
				Build()
		}
		return "", errors.WrapError(err, errors.CategoryExternalTool, "failed to resolve repository root").
			WithContext("dir", n.dir).
			Build()
	}
	return wt.Filesystem.Root(), nil
}

// Head resolves the HEAD commit hash.
func (n *Native) Head() (string, error) {
	repo, err := n.open()
	if err != nil {
		return "", err
	}
	ref, err := repo.Head()
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryExternalTool, "failed to resolve HEAD").
			WithContext("dir", n.dir).
			Build()
	}
	return ref.Hash().String(), nil
}

// ChangedSince diffs the tree of commit against the tree of HEAD. Both sides of every
// change are listed, matching `git diff --name-only --no-renames`.
func (n *Native) ChangedSince(commit string) ([]string, error) {
	if err := validateCommit(commit); err != nil {
		return nil, err
	}
	repo, err := n.open()
	if err != nil {
		return nil, err
	}

	fromTree, err := n.treeAt(repo, plumbing.Revision(commit))
	if err != nil {
		return nil, err
	}
	toTree, err := n.treeAt(repo, plumbing.Revision("HEAD"))
	if err != nil {
		return nil, err
	}

	changes, err := object.DiffTree(fromTree, toTree)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryExternalTool, "failed to list changed files").
			WithContext("commit", commit).
			Build()
	}

	paths := make([]string, 0, len(changes))
	for _, ch := range changes {
		paths = append(paths, ch.From.Name, ch.To.Name)
	}
	paths = sortedUnique(paths)
	n.logger.Debug("Computed changed files", logfields.Commit(commit), logfields.Count(len(paths)))
	return paths, nil
}

func (n *Native) treeAt(repo *git.Repository, rev plumbing.Revision) (*object.Tree, error) {
	hash, err := repo.ResolveRevision(rev)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryExternalTool, "failed to resolve revision").
			WithContext("revision", string(rev)).
			Build()
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryExternalTool, "failed to load commit").
			WithContext("revision", string(rev)).
			Build()
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryExternalTool, "failed to load tree").
			WithContext("revision", string(rev)).
			Build()
	}
	return tree, nil
}
