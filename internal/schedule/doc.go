// Package schedule computes posting times for brands.
//
// Everything here is a pure function of its inputs:
//   - Generate: a brand's daily slot table from (offset, posts per day)
//   - FindConflict / Conflicts: advisory offset collisions between brands
//   - NextSlot: the next strictly-future timestamp for the two-slot batch model
package schedule
