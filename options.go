package incremental

import (
	"log/slog"
	"time"

	"git.home.luguber.info/inful/incremental/internal/foundation/normalization"
	"git.home.luguber.info/inful/incremental/internal/git"
)

// Mode selects how a Tracker detects changes.
type Mode string

const (
	ModeTimestamp     Mode = "timestamp"
	ModeSourceControl Mode = "source-control"
)

var modes = normalization.NewNormalizer("mode", map[string]Mode{
	string(ModeTimestamp):     ModeTimestamp,
	"mtime":                   ModeTimestamp,
	string(ModeSourceControl): ModeSourceControl,
	"git":                     ModeSourceControl,
	"scm":                     ModeSourceControl,
}, ModeTimestamp)

// ParseMode normalizes a mode name. The empty string selects ModeTimestamp;
// "mtime" and "git" are accepted as aliases.
func ParseMode(s string) (Mode, error) {
	return modes.Normalize(s)
}

// Options configures a Tracker.
type Options struct {
	// Namespace identifies the build target. Required.
	Namespace string
	// Mode defaults to ModeTimestamp.
	Mode Mode
	// TrackingFile defaults to ".incremental"; relative paths are resolved against Root.
	TrackingFile string
	// Root is the directory relative paths are resolved against and, in source-control
	// mode, the directory git runs in. Defaults to the process working directory.
	Root string
	// Triggers maps hook names to shell commands. The tracker stores them and never runs them.
	Triggers map[string]string
	// StoreKind is "json" (default) or "sqlite".
	StoreKind string
	// GitBackend is "cli" (default, runs the git binary) or "native" (go-git).
	GitBackend string

	Logger   *slog.Logger
	Recorder Recorder
	// Clock returns the current time; defaults to time.Now.
	Clock func() time.Time

	// repository replaces the git backend in tests.
	repository git.Repository
}

// Recorder receives metrics about queries and baseline writes.
// internal/metrics provides a Prometheus implementation.
type Recorder interface {
	ObserveQuery(namespace, mode string, isNew bool)
	ObserveFinalize(namespace, mode string, success bool)
	SetChangedFiles(namespace string, n int)
	SetBaseline(namespace string, unixSeconds float64)
}
