package incremental

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/incremental/internal/foundation/errors"
	"git.home.luguber.info/inful/incremental/internal/git"
	"git.home.luguber.info/inful/incremental/internal/state"
	helpers "git.home.luguber.info/inful/incremental/internal/testutil/testutils"
)

var buildStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func writeFile(t *testing.T, dir, name string, mtime time.Time) string {
	t.Helper()
	return helpers.WriteFileAt(t, dir, name, name, mtime)
}

func newTimestampTracker(t *testing.T, root, ns string, now time.Time) *Tracker {
	t.Helper()
	tr, err := New(Options{Namespace: ns, Root: root, Clock: fixedClock(now)})
	require.NoError(t, err)
	return tr
}

// fakeRepo is a scripted git.Repository.
type fakeRepo struct {
	availableErr error
	topLevel     string
	topLevelErr  error
	head         string
	headErr      error
	changed      []string
	changedErr   error
	sinceCalls   []string
}

func (f *fakeRepo) Available() error { return f.availableErr }

func (f *fakeRepo) TopLevel() (string, error) { return f.topLevel, f.topLevelErr }

func (f *fakeRepo) Head() (string, error) { return f.head, f.headErr }

func (f *fakeRepo) ChangedSince(commit string) ([]string, error) {
	f.sinceCalls = append(f.sinceCalls, commit)
	return f.changed, f.changedErr
}

type countingRecorder struct {
	queries   map[bool]int
	finalized map[bool]int
	changed   int
	baseline  float64
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{queries: map[bool]int{}, finalized: map[bool]int{}}
}

func (r *countingRecorder) ObserveQuery(_, _ string, isNew bool)      { r.queries[isNew]++ }
func (r *countingRecorder) ObserveFinalize(_, _ string, success bool) { r.finalized[success]++ }
func (r *countingRecorder) SetChangedFiles(_ string, n int)           { r.changed = n }
func (r *countingRecorder) SetBaseline(_ string, s float64)           { r.baseline = s }

func TestNew_Validation(t *testing.T) {
	root := t.TempDir()

	_, err := New(Options{Root: root})
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	_, err = New(Options{Namespace: "   ", Root: root})
	assert.True(t, IsValidation(err))

	_, err = New(Options{Namespace: "site", Mode: "svn", Root: root})
	assert.True(t, IsValidation(err))

	_, err = New(Options{Namespace: "site", StoreKind: "redis", Root: root})
	assert.True(t, IsValidation(err))

	_, err = New(Options{Namespace: "site", GitBackend: "hg", Root: root})
	assert.True(t, IsValidation(err))
}

func TestResolveRoot(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	got, err := ResolveRoot("")
	require.NoError(t, err)
	assert.Equal(t, wd, got)

	got, err = ResolveRoot("sub/dir")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "sub", "dir"), got)

	root := t.TempDir()
	tr := newTimestampTracker(t, root, "site", buildStart)
	assert.Equal(t, root, tr.Root())
}

func TestNew_ModeAliases(t *testing.T) {
	root := t.TempDir()
	tr, err := New(Options{Namespace: "site", Mode: "mtime", Root: root})
	require.NoError(t, err)
	assert.Equal(t, ModeTimestamp, tr.Mode())

	tr, err = New(Options{Namespace: "site", Root: root})
	require.NoError(t, err)
	assert.Equal(t, ModeTimestamp, tr.Mode())
}

func TestTimestamp_FirstRunTreatsEverythingAsNew(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "old.md", time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC))

	tr := newTimestampTracker(t, root, "site", buildStart)
	assert.True(t, tr.Baseline().Equal(time.Unix(0, 0)))

	isNew, err := tr.IsNew("old.md")
	require.NoError(t, err)
	assert.True(t, isNew)

	helpers.NewFileAssertions(t, root).AssertFileNotExists(".incremental")
}

func TestTimestamp_FinalizeThenUnchanged(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "page.md", buildStart.Add(-time.Hour))

	first := newTimestampTracker(t, root, "site", buildStart)
	require.NoError(t, first.Finalize())

	second := newTimestampTracker(t, root, "site", buildStart.Add(time.Hour))
	assert.True(t, second.Baseline().Equal(buildStart))

	isNew, err := second.IsNew("page.md")
	require.NoError(t, err)
	assert.False(t, isNew)

	writeFile(t, root, "page.md", buildStart.Add(time.Minute))
	isNew, err = second.IsNew("page.md")
	require.NoError(t, err)
	assert.True(t, isNew)
}

func TestTimestamp_ComparisonIsStrict(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "same.md", buildStart)
	writeFile(t, root, "later.md", buildStart.Add(time.Second))

	require.NoError(t, newTimestampTracker(t, root, "site", buildStart).Finalize())

	tr := newTimestampTracker(t, root, "site", buildStart.Add(time.Hour))
	isNew, err := tr.IsNew("same.md")
	require.NoError(t, err)
	assert.False(t, isNew, "mtime equal to the baseline is not new")

	isNew, err = tr.IsNew("later.md")
	require.NoError(t, err)
	assert.True(t, isNew)
}

func TestTimestamp_FinalizePersistsStartInstant(t *testing.T) {
	root := t.TempDir()
	now := buildStart
	clock := func() time.Time { return now }

	tr, err := New(Options{Namespace: "site", Root: root, Clock: clock})
	require.NoError(t, err)
	now = buildStart.Add(10 * time.Minute)
	require.NoError(t, tr.Finalize())

	records, err := state.NewJSONFileStore(tr.TrackingFile()).Load()
	require.NoError(t, err)
	ts, ok := records.Timestamp("site")
	require.True(t, ok)
	assert.True(t, ts.Equal(buildStart), "got %s", ts)
	assert.True(t, tr.StartedAt().Equal(buildStart))
}

func TestTimestamp_AbsolutePathAndCustomTrackingFile(t *testing.T) {
	root := t.TempDir()
	p := writeFile(t, root, "nested/dir/file.txt", buildStart.Add(time.Hour))

	tr, err := New(Options{
		Namespace:    "site",
		Root:         root,
		TrackingFile: "state/tracking.json",
		Clock:        fixedClock(buildStart),
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "state", "tracking.json"), tr.TrackingFile())

	isNew, err := tr.IsNew(p)
	require.NoError(t, err)
	assert.True(t, isNew)

	require.NoError(t, tr.Finalize())
	helpers.NewFileAssertions(t, root).
		AssertFileNotExists(".incremental").
		AssertFileContains("state/tracking.json", `"version": 1`)
}

func TestTimestamp_MissingFileIsNotFound(t *testing.T) {
	root := t.TempDir()
	tr := newTimestampTracker(t, root, "site", buildStart)

	_, err := tr.IsNew("missing.md")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.True(t, stderrors.Is(err, os.ErrNotExist))
}

func TestFstat(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", buildStart.Add(-time.Hour))
	writeFile(t, root, "bb.md", buildStart.Add(-time.Hour))
	tr := newTimestampTracker(t, root, "site", buildStart)

	_, err := tr.Fstat()
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, ErrNotQueried))
	assert.True(t, IsPrecondition(err))

	_, err = tr.IsNew("a.md")
	require.NoError(t, err)
	info, err := tr.Fstat()
	require.NoError(t, err)
	assert.Equal(t, "a.md", info.Name())

	_, err = tr.IsNew("bb.md")
	require.NoError(t, err)
	info, err = tr.Fstat()
	require.NoError(t, err)
	assert.Equal(t, "bb.md", info.Name())
	assert.EqualValues(t, 5, info.Size())

	// A failed query keeps the previous metadata.
	_, err = tr.IsNew("gone.md")
	require.Error(t, err)
	info, err = tr.Fstat()
	require.NoError(t, err)
	assert.Equal(t, "bb.md", info.Name())
}

func TestTimestamp_NamespacesAreIsolated(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "shared.md", buildStart.Add(-time.Hour))

	require.NoError(t, newTimestampTracker(t, root, "site", buildStart).Finalize())

	other := newTimestampTracker(t, root, "api-docs", buildStart.Add(time.Hour))
	isNew, err := other.IsNew("shared.md")
	require.NoError(t, err)
	assert.True(t, isNew, "another namespace has no baseline yet")
}

func TestFinalize_LoadMergeWrite(t *testing.T) {
	root := t.TempDir()

	// Both trackers load before either finalizes.
	a := newTimestampTracker(t, root, "a", buildStart)
	b := newTimestampTracker(t, root, "b", buildStart.Add(time.Minute))
	require.NoError(t, a.Finalize())
	require.NoError(t, b.Finalize())

	records, err := state.NewJSONFileStore(a.TrackingFile()).Load()
	require.NoError(t, err)
	tsA, ok := records.Timestamp("a")
	require.True(t, ok)
	assert.True(t, tsA.Equal(buildStart))
	tsB, ok := records.Timestamp("b")
	require.True(t, ok)
	assert.True(t, tsB.Equal(buildStart.Add(time.Minute)))
}

func TestFinalize_Idempotent(t *testing.T) {
	root := t.TempDir()
	tr := newTimestampTracker(t, root, "site", buildStart)
	require.NoError(t, tr.Finalize())
	first, err := os.ReadFile(tr.TrackingFile())
	require.NoError(t, err)

	require.NoError(t, tr.Finalize())
	second, err := os.ReadFile(tr.TrackingFile())
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestNew_CorruptTrackingFile(t *testing.T) {
	root := t.TempDir()
	corrupt := []byte("{not json")
	require.NoError(t, os.WriteFile(filepath.Join(root, ".incremental"), corrupt, 0o600))

	_, err := New(Options{Namespace: "site", Root: root})
	require.Error(t, err)
	assert.True(t, IsCorruptState(err))
	helpers.NewFileAssertions(t, root).AssertFileUnchanged(".incremental", corrupt)
}

func TestTimestamp_SQLiteStore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "page.md", buildStart.Add(-time.Hour))

	tr, err := New(Options{Namespace: "site", Root: root, StoreKind: "sqlite", TrackingFile: "state.db", Clock: fixedClock(buildStart)})
	require.NoError(t, err)
	require.NoError(t, tr.Finalize())

	tr, err = New(Options{Namespace: "site", Root: root, StoreKind: "sqlite", TrackingFile: "state.db", Clock: fixedClock(buildStart.Add(time.Hour))})
	require.NoError(t, err)
	assert.True(t, tr.Baseline().Equal(buildStart))

	isNew, err := tr.IsNew("page.md")
	require.NoError(t, err)
	assert.False(t, isNew)
}

func TestFilterNew(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "old.md", buildStart.Add(-time.Hour))
	writeFile(t, root, "new.md", buildStart.Add(2*time.Hour))
	require.NoError(t, newTimestampTracker(t, root, "site", buildStart).Finalize())

	tr := newTimestampTracker(t, root, "site", buildStart.Add(3*time.Hour))
	got, err := tr.FilterNew([]string{"old.md", "new.md"})
	require.NoError(t, err)
	assert.Equal(t, []string{"new.md"}, got)

	_, err = tr.FilterNew([]string{"new.md", "missing.md"})
	assert.True(t, IsNotFound(err))
}

func TestTriggersAreCopied(t *testing.T) {
	triggers := map[string]string{"post-build": "make deploy"}
	tr, err := New(Options{Namespace: "site", Root: t.TempDir(), Triggers: triggers})
	require.NoError(t, err)

	triggers["post-build"] = "changed"
	got := tr.Triggers()
	assert.Equal(t, "make deploy", got["post-build"])

	got["post-build"] = "mutated"
	assert.Equal(t, "make deploy", tr.Triggers()["post-build"])
}

func TestRecorder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", buildStart.Add(time.Hour))
	rec := newCountingRecorder()

	tr, err := New(Options{Namespace: "site", Root: root, Recorder: rec, Clock: fixedClock(buildStart)})
	require.NoError(t, err)
	assert.Zero(t, rec.baseline)

	_, err = tr.IsNew("a.md")
	require.NoError(t, err)
	require.NoError(t, tr.Finalize())

	assert.Equal(t, 1, rec.queries[true])
	assert.Equal(t, 1, rec.finalized[true])
}

func TestSourceControl_NoBaselineNothingIsNew(t *testing.T) {
	repo := helpers.SetupTestGitRepo(t)
	repo.WriteFile("docs/a.md", "a")
	repo.Commit("initial")

	tr, err := New(Options{Namespace: "site", Mode: ModeSourceControl, Root: repo.Dir, GitBackend: "native"})
	require.NoError(t, err)
	assert.Empty(t, tr.ChangedFiles())
	assert.Empty(t, tr.BaselineCommit())

	isNew, err := tr.IsNew("docs/a.md")
	require.NoError(t, err)
	assert.False(t, isNew)
}

func TestSourceControl_ChangedSinceFinalizedCommit(t *testing.T) {
	repo := helpers.SetupTestGitRepo(t)
	repo.WriteFile("docs/a.md", "a")
	repo.WriteFile("docs/b.md", "b")
	repo.WriteFile("docs/c.md", "c")
	first := repo.Commit("initial")

	tr, err := New(Options{Namespace: "site", Mode: ModeSourceControl, Root: repo.Dir, GitBackend: "native"})
	require.NoError(t, err)
	require.NoError(t, tr.Finalize())

	repo.WriteFile("docs/a.md", "a2")
	repo.RemoveFile("docs/c.md")
	repo.WriteFile("docs/d.md", "d")
	repo.Commit("second")

	tr, err = New(Options{Namespace: "site", Mode: ModeSourceControl, Root: repo.Dir, GitBackend: "native"})
	require.NoError(t, err)
	assert.Equal(t, first, tr.BaselineCommit())
	assert.Equal(t, []string{"docs/a.md", "docs/c.md", "docs/d.md"}, tr.ChangedFiles())

	for path, want := range map[string]bool{
		"docs/a.md":                         true,
		"docs/b.md":                         false,
		"docs/c.md":                         true,
		"./docs/d.md":                       true,
		filepath.Join(repo.Dir, "docs/a.md"): true,
		"outside/x.md":                      false,
	} {
		got, err := tr.IsNew(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}

	_, err = tr.Fstat()
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, ErrModeMismatch))
}

func TestSourceControl_RootBelowTopLevel(t *testing.T) {
	repo := helpers.SetupTestGitRepo(t)
	repo.WriteFile("docs/guide.md", "v1")
	repo.Commit("initial")

	docs := filepath.Join(repo.Dir, "docs")
	opts := Options{Namespace: "site", Mode: ModeSourceControl, Root: docs, GitBackend: "native"}
	tr, err := New(opts)
	require.NoError(t, err)
	require.NoError(t, tr.Finalize())
	assert.Equal(t, filepath.Join(docs, ".incremental"), tr.TrackingFile())

	repo.WriteFile("docs/guide.md", "v2")
	repo.Commit("edit")

	tr, err = New(opts)
	require.NoError(t, err)
	isNew, err := tr.IsNew("guide.md")
	require.NoError(t, err)
	assert.True(t, isNew)
}

func TestSourceControl_FinalizeResolvesHeadAtFinalizeTime(t *testing.T) {
	root := t.TempDir()
	repo := &fakeRepo{topLevel: root, head: "1111111111111111111111111111111111111111"}

	tr, err := New(Options{Namespace: "site", Mode: ModeSourceControl, Root: root, repository: repo})
	require.NoError(t, err)

	repo.head = "2222222222222222222222222222222222222222"
	require.NoError(t, tr.Finalize())

	records, err := state.NewJSONFileStore(tr.TrackingFile()).Load()
	require.NoError(t, err)
	commit, ok := records.Commit("site")
	require.True(t, ok)
	assert.Equal(t, repo.head, commit)
}

func TestSourceControl_ChangedSetComputedOnce(t *testing.T) {
	root := t.TempDir()
	store := state.NewJSONFileStore(filepath.Join(root, ".incremental"))
	require.NoError(t, store.SaveCommit("site", "abc123"))

	repo := &fakeRepo{topLevel: root, changed: []string{"a.md"}}
	rec := newCountingRecorder()
	tr, err := New(Options{Namespace: "site", Mode: ModeSourceControl, Root: root, repository: repo, Recorder: rec})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.changed)

	for i := 0; i < 3; i++ {
		isNew, err := tr.IsNew("a.md")
		require.NoError(t, err)
		assert.True(t, isNew)
	}
	assert.Equal(t, []string{"abc123"}, repo.sinceCalls)
}

func TestSourceControl_Preconditions(t *testing.T) {
	root := t.TempDir()

	_, err := New(Options{Namespace: "site", Mode: ModeSourceControl, Root: root,
		repository: &fakeRepo{availableErr: git.ErrToolMissing}})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, ErrToolMissing))
	assert.True(t, IsPrecondition(err))

	_, err = New(Options{Namespace: "site", Mode: ModeSourceControl, Root: root,
		repository: &fakeRepo{topLevelErr: git.ErrNotRepository}})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, ErrNotRepository))
}

func TestSourceControl_NativeBackendOutsideRepository(t *testing.T) {
	_, err := New(Options{Namespace: "site", Mode: ModeSourceControl, Root: t.TempDir(), GitBackend: "native"})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, ErrNotRepository))
}

func TestSourceControl_ExternalToolFailures(t *testing.T) {
	root := t.TempDir()
	store := state.NewJSONFileStore(filepath.Join(root, ".incremental"))
	require.NoError(t, store.SaveCommit("site", "deadbeef"))

	toolErr := errors.ExternalToolError("git diff failed").Build()
	_, err := New(Options{Namespace: "site", Mode: ModeSourceControl, Root: root,
		repository: &fakeRepo{topLevel: root, changedErr: toolErr}})
	require.Error(t, err)
	assert.True(t, IsExternalToolFailure(err))

	rec := newCountingRecorder()
	repo := &fakeRepo{topLevel: root, headErr: errors.ExternalToolError("git rev-parse failed").Build()}
	tr, err := New(Options{Namespace: "other", Mode: ModeSourceControl, Root: root, repository: repo, Recorder: rec})
	require.NoError(t, err)
	err = tr.Finalize()
	require.Error(t, err)
	assert.True(t, IsExternalToolFailure(err))
	assert.Equal(t, 1, rec.finalized[false])

	records, err := store.Load()
	require.NoError(t, err)
	_, ok := records.Commit("other")
	assert.False(t, ok, "a failed finalize must not write a baseline")
}

func TestSourceControl_BaselinesDoNotCollideWithTimestamps(t *testing.T) {
	root := t.TempDir()
	repo := &fakeRepo{topLevel: root, head: "3333333333333333333333333333333333333333"}

	require.NoError(t, newTimestampTracker(t, root, "site", buildStart).Finalize())
	sc, err := New(Options{Namespace: "site", Mode: ModeSourceControl, Root: root, repository: repo})
	require.NoError(t, err)
	require.NoError(t, sc.Finalize())

	ts := newTimestampTracker(t, root, "site", buildStart.Add(time.Hour))
	assert.True(t, ts.Baseline().Equal(buildStart))
}
