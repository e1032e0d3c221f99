package git

import (
	"bytes"
	stderrors "errors"
	"log/slog"
	"os/exec"
	"strings"

	"git.home.luguber.info/inful/incremental/internal/foundation/errors"
	"git.home.luguber.info/inful/incremental/internal/logfields"
)

// CLI implements Repository by running the git binary in dir.
type CLI struct {
	dir    string
	binary string
	logger *slog.Logger
}

// NewCLI creates a CLI backend for dir using "git" from PATH.
func NewCLI(dir string) *CLI {
	return &CLI{dir: dir, binary: "git", logger: slog.Default()}
}

// WithBinary overrides the git executable (fluent helper).
func (c *CLI) WithBinary(binary string) *CLI { c.binary = binary; return c }

// WithLogger sets a custom logger.
func (c *CLI) WithLogger(logger *slog.Logger) *CLI { c.logger = logger; return c }

// result is the captured outcome of one git invocation.
type result struct {
	stdout string
	stderr string
}

// line returns stdout without the trailing line break, for single-value commands.
func (r result) line() string { return strings.TrimRight(r.stdout, "\r\n") }

// output returns the most useful text for error context.
func (r result) output() string {
	if r.stderr != "" {
		return r.stderr
	}
	return r.line()
}

// run executes git with args. Stdout is kept verbatim so NUL-separated path lists
// survive; stderr is trimmed. A non-zero exit is returned as *exec.ExitError;
// failure to start is returned as is.
func (c *CLI) run(args ...string) (result, error) {
	cmd := exec.Command(c.binary, args...)
	cmd.Dir = c.dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := result{
		stdout: stdout.String(),
		stderr: strings.TrimSpace(stderr.String()),
	}
	c.logger.Debug("git invocation", slog.String("args", strings.Join(args, " ")), logfields.Path(c.dir), logfields.Error(err))
	return res, err
}

// Available checks that the binary resolves on PATH and that `git --version` succeeds.
func (c *CLI) Available() error {
	if _, err := exec.LookPath(c.binary); err != nil {
		return errors.WrapError(err, errors.CategoryPrecondition, msgToolMissing).
			WithContext("binary", c.binary).
			Build()
	}
	res, err := c.run("--version")
	if err != nil {
		return errors.WrapError(err, errors.CategoryPrecondition, msgToolMissing).
			WithContext("binary", c.binary).
			WithContext("output", res.output()).
			Build()
	}
	return nil
}

// TopLevel runs `git rev-parse --show-toplevel`. A non-zero exit means dir is not
// inside a work tree.
func (c *CLI) TopLevel() (string, error) {
	res, err := c.run("rev-parse", "--show-toplevel")
	if err != nil {
		if isExitError(err) {
			return "", errors.WrapError(err, errors.CategoryPrecondition, msgNotRepository).
				WithContext("dir", c.dir).
				WithContext("output", res.output()).
				Build()
		}
		return "", c.toolFailure(err, "failed to resolve repository root", res)
	}
	top := res.line()
	if top == "" {
		// Inside .git or a bare repository there is no work tree.
		return "", errors.PreconditionError(msgNotRepository).WithContext("dir", c.dir).Build()
	}
	return top, nil
}

// Head runs `git rev-parse --verify HEAD`.
func (c *CLI) Head() (string, error) {
	res, err := c.run("rev-parse", "--verify", "HEAD")
	if err != nil {
		return "", c.toolFailure(err, "failed to resolve HEAD", res)
	}
	return res.line(), nil
}

// ChangedSince runs `git diff --name-only <commit>..HEAD`. Renames are reported as a
// deletion plus an addition so both paths are listed.
func (c *CLI) ChangedSince(commit string) ([]string, error) {
	if err := validateCommit(commit); err != nil {
		return nil, err
	}
	res, err := c.run("diff", "--name-only", "-z", "--no-renames", "--no-ext-diff", commit+"..HEAD")
	if err != nil {
		return nil, c.toolFailure(err, "failed to list changed files", res).WithContext("commit", commit)
	}
	// Paths may begin or end with spaces; only the terminating NUL is dropped.
	out := strings.TrimSuffix(res.stdout, "\x00")
	if out == "" {
		return []string{}, nil
	}
	return sortedUnique(strings.Split(out, "\x00")), nil
}

func (c *CLI) toolFailure(err error, message string, res result) *errors.ClassifiedError {
	return errors.WrapError(err, errors.CategoryExternalTool, message).
		WithContext("dir", c.dir).
		WithContext("output", res.output()).
		Build()
}

func isExitError(err error) bool {
	var exitErr *exec.ExitError
	return stderrors.As(err, &exitErr)
}
