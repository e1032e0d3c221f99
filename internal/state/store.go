package state

import (
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/incremental/internal/foundation/errors"
	"git.home.luguber.info/inful/incremental/internal/foundation/normalization"
)

// DefaultTrackingFile is the tracking file name used when none is configured.
const DefaultTrackingFile = ".incremental"

// Store loads and persists a RecordSet.
//
// Saves upsert a single namespace entry and leave every other entry untouched. There is
// no locking: two processes saving the same namespace race and the last write wins.
type Store interface {
	Load() (*RecordSet, error)
	SaveTimestamp(namespace string, t time.Time) error
	SaveCommit(namespace, commit string) error
	Path() string
}

// StoreKind selects a Store implementation.
type StoreKind string

const (
	StoreJSON   StoreKind = "json"
	StoreSQLite StoreKind = "sqlite"
)

var storeKinds = normalization.NewNormalizer("store", map[string]StoreKind{
	string(StoreJSON):   StoreJSON,
	string(StoreSQLite): StoreSQLite,
}, StoreJSON)

// ParseStoreKind normalizes a store kind; the empty string selects StoreJSON.
func ParseStoreKind(s string) (StoreKind, error) {
	return storeKinds.Normalize(s)
}

// Open returns a Store of the given kind for path. A relative path is resolved
// against root; an empty path selects DefaultTrackingFile.
func Open(kind StoreKind, root, path string) (Store, error) {
	path = ResolvePath(root, path)
	switch kind {
	case "", StoreJSON:
		return NewJSONFileStore(path), nil
	case StoreSQLite:
		return NewSQLiteStore(path), nil
	default:
		return nil, errors.ValidationError("unknown store kind").WithContext("store", string(kind)).Build()
	}
}

// ResolvePath applies the tracking file defaults.
func ResolvePath(root, path string) string {
	if path == "" {
		path = DefaultTrackingFile
	}
	if !filepath.IsAbs(path) && root != "" {
		path = filepath.Join(root, path)
	}
	return path
}
