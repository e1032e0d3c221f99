package commands

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"git.home.luguber.info/inful/incremental/internal/foundation/errors"
	"git.home.luguber.info/inful/incremental/internal/logfields"
)

// CheckCmd implements the 'check' command.
type CheckCmd struct {
	Patterns []string `arg:"" optional:"" sep:"none" help:"Files or doublestar globs relative to the root; read from stdin when omitted"`
	Finalize bool     `help:"Record the baseline after checking"`
	All      bool     `help:"Print every file prefixed with new or unchanged"`
}

func (c *CheckCmd) Run(g *Global, root *CLI) error {
	s, err := openSession(g, root)
	if err != nil {
		return err
	}
	defer s.flushMetrics()

	patterns := c.Patterns
	if len(patterns) == 0 {
		if patterns, err = readLines(g); err != nil {
			return err
		}
	}
	files, err := expandPatterns(s.tracker.Root(), patterns)
	if err != nil {
		return err
	}

	out := g.stdout()
	fresh := 0
	for _, f := range files {
		isNew, err := s.tracker.IsNew(f)
		if err != nil {
			return err
		}
		if isNew {
			fresh++
		}
		switch {
		case c.All && isNew:
			_, _ = fmt.Fprintf(out, "new\t%s\n", f)
		case c.All:
			_, _ = fmt.Fprintf(out, "unchanged\t%s\n", f)
		case isNew:
			_, _ = fmt.Fprintln(out, f)
		}
	}
	s.logger.Debug("Check complete", logfields.Count(len(files)), "new", fresh)

	if c.Finalize {
		return s.tracker.Finalize()
	}
	return nil
}

func readLines(g *Global) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(g.stdin())
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to read paths from stdin").Build()
	}
	return lines, nil
}

// expandPatterns expands glob patterns against root, keeping literal paths as given
// so a missing file still reaches the tracker. Duplicates are dropped, first
// occurrence wins.
func expandPatterns(root string, patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	for _, pattern := range patterns {
		if !hasMeta(pattern) {
			add(pattern)
			continue
		}

		slashed := filepath.ToSlash(pattern)
		base, glob := root, slashed
		if filepath.IsAbs(pattern) {
			var b string
			b, glob = doublestar.SplitPattern(slashed)
			base = filepath.FromSlash(b)
		}
		if !doublestar.ValidatePattern(glob) {
			return nil, errors.ValidationError("invalid glob pattern").
				WithContext("pattern", pattern).
				Build()
		}

		matches, err := doublestar.Glob(os.DirFS(base), glob, doublestar.WithFilesOnly())
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to expand glob").
				WithContext("pattern", pattern).
				Build()
		}
		for _, m := range matches {
			if base == root {
				add(filepath.FromSlash(m))
			} else {
				add(filepath.Join(base, filepath.FromSlash(m)))
			}
		}
	}
	return out, nil
}

func hasMeta(p string) bool {
	return strings.ContainsAny(p, "*?[{")
}
