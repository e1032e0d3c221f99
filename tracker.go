package incremental

import (
	stderrors "errors"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"git.home.luguber.info/inful/incremental/internal/foundation/errors"
	"git.home.luguber.info/inful/incremental/internal/git"
	"git.home.luguber.info/inful/incremental/internal/logfields"
	"git.home.luguber.info/inful/incremental/internal/metrics"
	"git.home.luguber.info/inful/incremental/internal/state"
)

// epoch is the baseline of a namespace that was never finalized in timestamp mode.
var epoch = time.Unix(0, 0).UTC()

// Tracker answers freshness queries for one namespace during one build.
// It is not safe for concurrent use.
type Tracker struct {
	namespace string
	mode      Mode
	root      string
	store     state.Store
	triggers  map[string]string
	logger    *slog.Logger
	recorder  Recorder

	startedAt time.Time

	// timestamp mode
	baseline time.Time
	lastInfo fs.FileInfo

	// source-control mode
	repo           git.Repository
	topLevel       string
	baselineCommit string
	changed        map[string]struct{}
}

// New validates opts, captures the build start instant and loads the baseline for
// the namespace.
func New(opts Options) (*Tracker, error) {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	startedAt := clock()

	if strings.TrimSpace(opts.Namespace) == "" {
		return nil, errors.ValidationError("namespace is required").Build()
	}
	mode, err := ParseMode(string(opts.Mode))
	if err != nil {
		return nil, err
	}
	storeKind, err := state.ParseStoreKind(opts.StoreKind)
	if err != nil {
		return nil, err
	}
	backend, err := git.ParseBackend(opts.GitBackend)
	if err != nil {
		return nil, err
	}

	root, err := ResolveRoot(opts.Root)
	if err != nil {
		return nil, err
	}
	store, err := state.Open(storeKind, root, opts.TrackingFile)
	if err != nil {
		return nil, err
	}

	t := &Tracker{
		namespace: opts.Namespace,
		mode:      mode,
		root:      root,
		store:     store,
		triggers:  maps.Clone(opts.Triggers),
		logger:    opts.Logger,
		recorder:  opts.Recorder,
		startedAt: startedAt,
	}
	if t.triggers == nil {
		t.triggers = map[string]string{}
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	if t.recorder == nil {
		t.recorder = metrics.NoopRecorder{}
	}
	t.logger = t.logger.With(logfields.Namespace(t.namespace), logfields.Mode(string(t.mode)))

	switch mode {
	case ModeSourceControl:
		repo := opts.repository
		if repo == nil {
			if repo, err = git.Open(backend, root); err != nil {
				return nil, err
			}
		}
		if err := t.loadChangedFiles(repo); err != nil {
			return nil, err
		}
	default:
		if err := t.loadBaseline(); err != nil {
			return nil, err
		}
	}
	t.logger.Debug("Tracker ready",
		logfields.Root(t.root),
		logfields.Store(string(storeKind)),
		logfields.Backend(string(backend)),
		logfields.TrackingFile(t.store.Path()))
	return t, nil
}

// ResolveRoot returns root as an absolute path; the empty string selects the working
// directory.
func ResolveRoot(root string) (string, error) {
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", errors.WrapError(err, errors.CategoryFileSystem, "failed to determine working directory").Build()
		}
		root = wd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryFileSystem, "failed to resolve root").
			WithContext("root", root).
			Build()
	}
	return abs, nil
}

func (t *Tracker) loadBaseline() error {
	records, err := t.store.Load()
	if err != nil {
		return err
	}
	t.baseline = epoch
	if ts, ok := records.Timestamp(t.namespace); ok {
		t.baseline = ts
	}
	t.recorder.SetBaseline(t.namespace, float64(t.baseline.UnixNano())/1e9)
	t.logger.Debug("Loaded timestamp baseline",
		logfields.TrackingFile(t.store.Path()),
		slog.Time("baseline", t.baseline))
	return nil
}

// loadChangedFiles checks the source-control preconditions and computes the changed
// file set once. Without a recorded commit the set stays empty.
func (t *Tracker) loadChangedFiles(repo git.Repository) error {
	if err := repo.Available(); err != nil {
		return err
	}
	top, err := repo.TopLevel()
	if err != nil {
		return err
	}
	t.repo = repo
	t.topLevel = evalSymlinks(filepath.FromSlash(top))
	t.root = evalSymlinks(t.root)

	records, err := t.store.Load()
	if err != nil {
		return err
	}
	t.changed = map[string]struct{}{}
	commit, ok := records.Commit(t.namespace)
	if !ok {
		t.logger.Debug("No recorded commit; nothing is considered changed", logfields.TrackingFile(t.store.Path()))
		t.recorder.SetChangedFiles(t.namespace, 0)
		return nil
	}

	paths, err := repo.ChangedSince(commit)
	if err != nil {
		return err
	}
	t.baselineCommit = commit
	for _, p := range paths {
		t.changed[p] = struct{}{}
	}
	t.recorder.SetChangedFiles(t.namespace, len(t.changed))
	t.logger.Debug("Loaded changed files", logfields.Commit(commit), logfields.Count(len(t.changed)))
	return nil
}

// IsNew reports whether path changed since the namespace's baseline.
//
// In timestamp mode the file is opened and stat'ed; it is new when its modification
// time is strictly after the baseline. The captured metadata is available from Fstat.
// In source-control mode path is only looked up in the changed file set and need not
// exist on disk.
func (t *Tracker) IsNew(path string) (bool, error) {
	var (
		isNew bool
		err   error
	)
	if t.mode == ModeSourceControl {
		isNew = t.inChangedSet(path)
	} else {
		isNew, err = t.isNewByModTime(path)
		if err != nil {
			return false, err
		}
	}
	t.recorder.ObserveQuery(t.namespace, string(t.mode), isNew)
	t.logger.Debug("Checked file", logfields.Path(path), slog.Bool("new", isNew))
	return isNew, nil
}

func (t *Tracker) isNewByModTime(path string) (bool, error) {
	full := t.resolve(path)
	f, err := os.Open(full)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return false, errors.WrapError(err, errors.CategoryNotFound, "input file does not exist").
				WithContext("path", full).
				Build()
		}
		return false, errors.WrapError(err, errors.CategoryFileSystem, "failed to open input file").
			WithContext("path", full).
			Build()
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return false, errors.WrapError(err, errors.CategoryFileSystem, "failed to stat input file").
			WithContext("path", full).
			Build()
	}
	t.lastInfo = info
	return info.ModTime().After(t.baseline), nil
}

func (t *Tracker) inChangedSet(path string) bool {
	_, ok := t.changed[t.repoRelative(path)]
	return ok
}

// repoRelative maps a query path onto the repository-relative, slash-separated form
// git reports. Relative paths are taken relative to the root. Paths outside the
// repository are returned cleaned and never match.
func (t *Tracker) repoRelative(path string) string {
	full := t.resolve(path)
	if rel, ok := within(t.topLevel, full); ok {
		return rel
	}
	if resolved := evalSymlinks(full); resolved != full {
		if rel, ok := within(t.topLevel, resolved); ok {
			return rel
		}
	}
	return filepath.ToSlash(filepath.Clean(path))
}

func within(base, target string) (string, bool) {
	rel, err := filepath.Rel(base, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (t *Tracker) resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(t.root, path)
}

// evalSymlinks resolves symlinks when possible and returns p unchanged otherwise.
func evalSymlinks(p string) string {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	return p
}

// Fstat returns the metadata captured by the most recent IsNew call.
func (t *Tracker) Fstat() (fs.FileInfo, error) {
	if t.mode == ModeSourceControl {
		return nil, ErrModeMismatch.WithContext("namespace", t.namespace)
	}
	if t.lastInfo == nil {
		return nil, ErrNotQueried.WithContext("namespace", t.namespace)
	}
	return t.lastInfo, nil
}

// FilterNew returns the paths for which IsNew reports true, in input order.
// The first error aborts the scan.
func (t *Tracker) FilterNew(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		isNew, err := t.IsNew(p)
		if err != nil {
			return nil, err
		}
		if isNew {
			out = append(out, p)
		}
	}
	return out, nil
}

// Finalize records the new baseline for the namespace. Timestamp mode stores the
// instant New was called; source-control mode stores HEAD as resolved now. Calling
// Finalize again re-persists.
func (t *Tracker) Finalize() error {
	var (
		err  error
		attr slog.Attr
	)
	if t.mode == ModeSourceControl {
		var head string
		if head, err = t.repo.Head(); err == nil {
			err = t.store.SaveCommit(t.namespace, head)
		}
		attr = logfields.Commit(head)
	} else {
		err = t.store.SaveTimestamp(t.namespace, t.startedAt)
		attr = slog.Time("baseline", t.startedAt)
	}

	t.recorder.ObserveFinalize(t.namespace, string(t.mode), err == nil)
	if err != nil {
		return err
	}
	t.logger.Info("Baseline recorded", logfields.TrackingFile(t.store.Path()), attr)
	return nil
}

// Namespace returns the namespace the tracker was created for.
func (t *Tracker) Namespace() string { return t.namespace }

// Mode returns the detection mode.
func (t *Tracker) Mode() Mode { return t.mode }

// Root returns the absolute directory relative paths are resolved against.
func (t *Tracker) Root() string { return t.root }

// TrackingFile returns the path of the tracking file.
func (t *Tracker) TrackingFile() string { return t.store.Path() }

// StartedAt returns the instant captured by New; timestamp-mode Finalize persists it.
func (t *Tracker) StartedAt() time.Time { return t.startedAt }

// Baseline returns the timestamp baseline (the Unix epoch when none was recorded).
// It is the zero time in source-control mode.
func (t *Tracker) Baseline() time.Time { return t.baseline }

// BaselineCommit returns the recorded commit the changed set was computed from,
// or "" when none was recorded or in timestamp mode.
func (t *Tracker) BaselineCommit() string { return t.baselineCommit }

// ChangedFiles returns the sorted changed file set (source-control mode).
func (t *Tracker) ChangedFiles() []string {
	out := make([]string, 0, len(t.changed))
	for p := range t.changed {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Triggers returns a copy of the configured trigger commands.
func (t *Tracker) Triggers() map[string]string { return maps.Clone(t.triggers) }
