// Package scheduler triggers auto-schedule batches.
//
// A cron entry (or fixed interval) sweeps stored jobs, picks the ones whose
// brand outputs are all ready, and submits one engine task per job. Execution
// itself happens in the task engine; this package only decides when.
package scheduler
