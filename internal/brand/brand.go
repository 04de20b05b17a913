// Package brand holds the per-brand scheduling configuration and a registry
// that the scheduling code reads from.
package brand

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyID      = errors.New("brand id is required")
	ErrDuplicateID  = errors.New("duplicate brand id")
	ErrOffsetRange  = errors.New("offset_hours must be in [0,23]")
	ErrPostsPerDay  = errors.New("posts_per_day must be one of 2,3,4,6,8,12")
	ErrUnknownBrand = errors.New("unknown brand")
)

const defaultPostsPerDay = 2

var allowedPostsPerDays = []int{2, 3, 4, 6, 8, 12}

// Brand is one independent publishing identity and its schedule settings.
type Brand struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	OffsetHours int    `json:"offset_hours"`
	PostsPerDay int    `json:"posts_per_day,omitempty"`
}

// DisplayName returns Name, falling back to ID.
func (b Brand) DisplayName() string {
	if n := strings.TrimSpace(b.Name); n != "" {
		return n
	}
	return b.ID
}

// WithDefaults fills optional fields.
func (b Brand) WithDefaults() Brand {
	b.ID = strings.TrimSpace(b.ID)
	if b.PostsPerDay == 0 {
		b.PostsPerDay = defaultPostsPerDay
	}
	return b
}

// Validate checks a single brand. It does not look at other brands; offset
// collisions are informational and reported by schedule.FindConflict.
func (b Brand) Validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return ErrEmptyID
	}
	if b.OffsetHours < 0 || b.OffsetHours > 23 {
		return fmt.Errorf("brand %q: %w (got %d)", b.ID, ErrOffsetRange, b.OffsetHours)
	}
	if !AllowedPostsPerDay(b.PostsPerDay) {
		return fmt.Errorf("brand %q: %w (got %d)", b.ID, ErrPostsPerDay, b.PostsPerDay)
	}
	return nil
}

// AllowedPostsPerDay reports whether n is a supported posting frequency.
func AllowedPostsPerDay(n int) bool {
	for _, v := range allowedPostsPerDays {
		if v == n {
			return true
		}
	}
	return false
}

// ValidateAll validates every brand and rejects duplicate IDs.
func ValidateAll(brands []Brand) error {
	seen := make(map[string]struct{}, len(brands))
	for _, b := range brands {
		b = b.WithDefaults()
		if err := b.Validate(); err != nil {
			return err
		}
		if _, dup := seen[b.ID]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateID, b.ID)
		}
		seen[b.ID] = struct{}{}
	}
	return nil
}
