package state

import (
	"maps"
	"sort"
	"time"
)

// RecordSet is the full persisted content of a tracking file.
type RecordSet struct {
	Timestamps map[string]time.Time
	Commits    map[string]string
}

// NewRecordSet returns an empty RecordSet.
func NewRecordSet() *RecordSet {
	return &RecordSet{
		Timestamps: make(map[string]time.Time),
		Commits:    make(map[string]string),
	}
}

// Timestamp returns the recorded build start for namespace.
func (r *RecordSet) Timestamp(namespace string) (time.Time, bool) {
	if r == nil {
		return time.Time{}, false
	}
	t, ok := r.Timestamps[namespace]
	return t, ok
}

// Commit returns the recorded commit for namespace.
func (r *RecordSet) Commit(namespace string) (string, bool) {
	if r == nil {
		return "", false
	}
	c, ok := r.Commits[namespace]
	return c, ok
}

// SetTimestamp upserts a timestamp baseline. The instant is normalized to UTC without
// a monotonic reading so that it compares equal to its serialized form.
func (r *RecordSet) SetTimestamp(namespace string, t time.Time) {
	if r.Timestamps == nil {
		r.Timestamps = make(map[string]time.Time)
	}
	r.Timestamps[namespace] = t.Round(0).UTC()
}

// SetCommit upserts a commit baseline.
func (r *RecordSet) SetCommit(namespace, commit string) {
	if r.Commits == nil {
		r.Commits = make(map[string]string)
	}
	r.Commits[namespace] = commit
}

// Clone returns a deep copy.
func (r *RecordSet) Clone() *RecordSet {
	out := NewRecordSet()
	if r == nil {
		return out
	}
	maps.Copy(out.Timestamps, r.Timestamps)
	maps.Copy(out.Commits, r.Commits)
	return out
}

// Len reports the total number of records across both sections.
func (r *RecordSet) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Timestamps) + len(r.Commits)
}

// Record is one flattened entry, used for listing.
type Record struct {
	Namespace string
	Kind      Kind
	Value     string
}

// Kind distinguishes the two baseline sections.
type Kind string

const (
	KindTimestamp Kind = "timestamp"
	KindCommit    Kind = "commit"
)

// Records flattens the set sorted by namespace, then kind.
func (r *RecordSet) Records() []Record {
	if r == nil {
		return nil
	}
	out := make([]Record, 0, r.Len())
	for ns, t := range r.Timestamps {
		out = append(out, Record{Namespace: ns, Kind: KindTimestamp, Value: FormatTimestamp(t)})
	}
	for ns, c := range r.Commits {
		out = append(out, Record{Namespace: ns, Kind: KindCommit, Value: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Namespace != out[j].Namespace {
			return out[i].Namespace < out[j].Namespace
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// FormatTimestamp renders t as RFC 3339 with nanoseconds in UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTimestamp parses the output of FormatTimestamp. Any RFC 3339 string with an
// offset is accepted, including the millisecond form JavaScript's Date produces.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
