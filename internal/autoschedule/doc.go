// Package autoschedule submits a job's completed brand outputs to the
// publishing platform at computed future timestamps.
//
// A batch walks job.BrandIDs in order, one brand at a time. Each brand's
// outcome is independent: a render or submission failure for one brand is
// counted and the batch moves on. The only error Run returns is a failed
// precondition (some brand not COMPLETED/SCHEDULED), in which case nothing
// is submitted.
package autoschedule
