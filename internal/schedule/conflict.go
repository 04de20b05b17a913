package schedule

import "brandops/internal/brand"

// FindConflict returns the display name of the first brand other than selfID
// whose offset equals candidateOffset.
//
// Collisions are allowed (two brands can post different content at the same
// hour); callers surface the result as a warning only.
func FindConflict(candidateOffset int, selfID string, brands []brand.Brand) (string, bool) {
	for _, b := range brands {
		if b.ID == selfID {
			continue
		}
		if b.OffsetHours == candidateOffset {
			return b.DisplayName(), true
		}
	}
	return "", false
}

// Conflict is a pair of brands sharing an offset.
type Conflict struct {
	BrandID     string
	OtherID     string
	OffsetHours int
}

// Conflicts lists each brand that collides with an earlier brand in the slice.
func Conflicts(brands []brand.Brand) []Conflict {
	var out []Conflict
	for i, b := range brands {
		for _, prev := range brands[:i] {
			if prev.ID == b.ID {
				continue
			}
			if prev.OffsetHours == b.OffsetHours {
				out = append(out, Conflict{BrandID: b.ID, OtherID: prev.ID, OffsetHours: b.OffsetHours})
				break
			}
		}
	}
	return out
}
