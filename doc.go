// Package incremental tells an incremental build which inputs changed since the last
// recorded build of a namespace, and records a new baseline when the build completes.
//
// A Tracker runs in one of two modes:
//
//   - ModeTimestamp compares each file's modification time with the instant the previous
//     build started. A namespace that was never finalized reports every file as new.
//   - ModeSourceControl compares against the set of paths git reports as changed between
//     the commit recorded for the namespace and HEAD. A namespace that was never finalized
//     reports nothing as new.
//
// Typical use:
//
//	tr, err := incremental.New(incremental.Options{Namespace: "docs"})
//	if err != nil {
//		return err
//	}
//	for _, f := range files {
//		changed, err := tr.IsNew(f)
//		if err != nil {
//			return err
//		}
//		if changed {
//			rebuild(f)
//		}
//	}
//	return tr.Finalize()
//
// Baselines live in a tracking file (".incremental" in the root by default). Finalize
// rewrites only the entry for its own namespace, but there is no locking: two processes
// finalizing the same namespace at once race and the last write wins.
package incremental
