// Package importer implements the staging import scheduler: a polling loop
// that drains staged bookmark items into the downstream bookmark-creation
// pipeline. Admission is bounded by a sliding window over recently started
// and recently finished work, batches are spread fairly across import
// sessions, items orphaned by crashed workers are reclaimed on a schedule,
// and sessions are completed once their backlog empties. All coordination
// happens through conditional updates against the staging store, so any
// number of worker processes can run the same loop concurrently.
package importer
