package schedule

import (
	"sort"
	"time"
)

// DefaultBaseHours is the two-slot day used by the batch auto-schedule flow:
// one post anchored at midnight, one at noon, both shifted by the brand offset.
var DefaultBaseHours = []int{0, 12}

// NextSlot returns the earliest time strictly after now at which a brand with
// the given offset may post.
//
// For each base hour (ascending) the candidate is today at baseHour+offset
// o'clock in now's location; hours past 23 roll into the next day. If no
// candidate is in the future the result is tomorrow at offset o'clock.
func NextSlot(now time.Time, offsetHours int, baseHours []int) time.Time {
	if len(baseHours) == 0 {
		baseHours = DefaultBaseHours
	}
	hours := append([]int(nil), baseHours...)
	sort.Ints(hours)

	y, m, d := now.Date()
	loc := now.Location()
	for _, base := range hours {
		candidate := time.Date(y, m, d, base+offsetHours, 0, 0, 0, loc)
		if candidate.After(now) {
			return candidate
		}
	}

	next := time.Date(y, m, d+1, offsetHours, 0, 0, 0, loc)
	if !next.After(now) {
		// Only reachable with a negative offset or a DST fold; step a day.
		next = now.Truncate(time.Hour).Add(24 * time.Hour)
	}
	return next
}
