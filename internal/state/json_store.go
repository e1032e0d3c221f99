package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/incremental/internal/foundation/errors"
)

// documentVersion is the current on-disk format version.
const documentVersion = 1

// document is the on-disk JSON shape of a RecordSet.
type document struct {
	Version    int               `json:"version"`
	Timestamps map[string]string `json:"timestamps"`
	Commits    map[string]string `json:"commits"`
}

// JSONFileStore implements Store using a single indented JSON document.
type JSONFileStore struct {
	path string
}

// NewJSONFileStore creates a JSON-backed store for path. Nothing is read until Load.
func NewJSONFileStore(path string) *JSONFileStore {
	return &JSONFileStore{path: path}
}

// Path returns the tracking file path.
func (s *JSONFileStore) Path() string { return s.path }

// Load reads the whole tracking file. A missing file yields an empty RecordSet.
func (s *JSONFileStore) Load() (*RecordSet, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewRecordSet(), nil
		}
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to read tracking file").
			WithContext("path", s.path).
			Build()
	}

	records, err := decodeDocument(data)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryCorruptState, "tracking file cannot be parsed").
			WithContext("path", s.path).
			Build()
	}
	return records, nil
}

// SaveTimestamp upserts the timestamp baseline for namespace.
func (s *JSONFileStore) SaveTimestamp(namespace string, t time.Time) error {
	return s.update(func(r *RecordSet) { r.SetTimestamp(namespace, t) })
}

// SaveCommit upserts the commit baseline for namespace.
func (s *JSONFileStore) SaveCommit(namespace, commit string) error {
	return s.update(func(r *RecordSet) { r.SetCommit(namespace, commit) })
}

// update performs the load-merge-write cycle.
func (s *JSONFileStore) update(mutate func(*RecordSet)) error {
	records, err := s.Load()
	if err != nil {
		return err
	}
	mutate(records)

	data, err := encodeDocument(records)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to encode tracking file").Build()
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to create tracking file directory").
				WithContext("path", s.path).
				Build()
		}
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write tracking file").
			WithContext("path", s.path).
			Build()
	}
	return nil
}

func encodeDocument(r *RecordSet) ([]byte, error) {
	doc := document{
		Version:    documentVersion,
		Timestamps: make(map[string]string, len(r.Timestamps)),
		Commits:    make(map[string]string, len(r.Commits)),
	}
	for ns, t := range r.Timestamps {
		doc.Timestamps[ns] = FormatTimestamp(t)
	}
	for ns, c := range r.Commits {
		doc.Commits[ns] = c
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// isVersioned reports whether raw carries a numeric version. A string under
// "version" is a legacy namespace of that name.
func isVersioned(raw map[string]json.RawMessage) bool {
	v, ok := raw["version"]
	if !ok {
		return false
	}
	v = bytes.TrimSpace(v)
	if len(v) == 0 || v[0] == '"' {
		return false
	}
	var n json.Number
	return json.Unmarshal(v, &n) == nil && n != ""
}

func decodeDocument(data []byte) (*RecordSet, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("top-level value is not an object")
	}

	if !isVersioned(raw) {
		return decodeLegacy(raw)
	}

	var doc document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if doc.Version != documentVersion {
		return nil, fmt.Errorf("unsupported tracking file version %d", doc.Version)
	}

	records := NewRecordSet()
	for ns, v := range doc.Timestamps {
		t, err := ParseTimestamp(v)
		if err != nil {
			return nil, fmt.Errorf("timestamp for namespace %q: %w", ns, err)
		}
		records.Timestamps[ns] = t
	}
	for ns, c := range doc.Commits {
		if c == "" {
			return nil, fmt.Errorf("empty commit for namespace %q", ns)
		}
		records.Commits[ns] = c
	}
	return records, nil
}
