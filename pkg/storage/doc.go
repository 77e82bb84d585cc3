// Package storage persists what a run produces.
//
// It covers three outputs:
//   - the JSON result file keyed by username (WriteResults, ReadResults)
//   - diagnostic screenshots captured when a post cannot be extracted (Manager)
//   - the SQLite record of processed posts used to skip work on later runs
//     and to report statistics (PostStore)
//
// All file writes go through a temporary file followed by a rename, so an
// interrupted run never leaves a truncated result or image behind.
//
// Usage:
//
//	store, err := storage.OpenPostStore("igreels.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	refs, err = store.FilterProcessed(ctx, refs)
//	...
//	err = store.SaveDetails(ctx, runID, "nasa", details)
package storage
