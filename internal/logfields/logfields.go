package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyNamespace    = "namespace"
	KeyMode         = "mode"
	KeyPath         = "path"
	KeyCommit       = "commit"
	KeyTrackingFile = "tracking_file"
	KeyStore        = "store"
	KeyBackend      = "backend"
	KeyRoot         = "root"
	KeyRunID        = "run_id"
	KeyCount        = "count"
	KeyError        = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Namespace(ns string) slog.Attr    { return slog.String(KeyNamespace, ns) }
func Mode(m string) slog.Attr          { return slog.String(KeyMode, m) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func TrackingFile(p string) slog.Attr  { return slog.String(KeyTrackingFile, p) }
func Store(kind string) slog.Attr      { return slog.String(KeyStore, kind) }
func Backend(name string) slog.Attr    { return slog.String(KeyBackend, name) }
func Root(dir string) slog.Attr        { return slog.String(KeyRoot, dir) }
func RunID(id string) slog.Attr        { return slog.String(KeyRunID, id) }
func Count(n int) slog.Attr            { return slog.Int(KeyCount, n) }

// Commit logs a commit identifier shortened to 8 characters.
func Commit(hash string) slog.Attr {
	if len(hash) > 8 {
		hash = hash[:8]
	}
	return slog.String(KeyCommit, hash)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
