// Package storage persists jobs, their per-brand outputs, and an audit log
// of auto-schedule batches.
//
// Drivers:
//   - "file": JSON snapshot of jobs + JSON Lines audit log
//   - "sqlite": SQLite database (modernc.org/sqlite, no cgo)
package storage
