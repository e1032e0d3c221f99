// Package state persists build baselines keyed by namespace.
//
// A baseline is either the instant a timestamp-mode build started or the commit a
// source-control-mode build finished on. Both live in a RecordSet, in separate sections,
// so the two baselines of one namespace never collide.
//
// Key components:
//   - RecordSet: explicit typed mapping loaded in full on every read
//   - Store: the persistence contract (Load, SaveTimestamp, SaveCommit)
//   - JSONFileStore: indented JSON document, load-merge-write on save (default)
//   - SQLiteStore: one row per (namespace, kind), upsert on save
//
// Stores never treat an unreadable document as empty: a file that exists but does not
// parse is reported as a corrupt_state error.
package state
