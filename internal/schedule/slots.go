package schedule

import "fmt"

type Variant int

const (
	VariantLight Variant = iota
	VariantDark
)

func (v Variant) String() string {
	switch v {
	case VariantLight:
		return "light"
	case VariantDark:
		return "dark"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// Slot is one posting opportunity in a day.
type Slot struct {
	Hour    int
	Variant Variant
}

// Generate returns exactly postsPerDay slots starting at offsetHours.
//
// The spacing is 24/postsPerDay with integer truncation, so frequencies that
// don't divide 24 (5, 7, ...) leave the tail of the day unused. That matches
// how existing schedules were computed and is kept as-is.
func Generate(offsetHours, postsPerDay int) []Slot {
	if postsPerDay <= 0 {
		return nil
	}
	offset := normalizeHour(offsetHours)
	interval := 24 / postsPerDay

	slots := make([]Slot, postsPerDay)
	for i := range slots {
		v := VariantLight
		if i%2 == 1 {
			v = VariantDark
		}
		slots[i] = Slot{Hour: (offset + i*interval) % 24, Variant: v}
	}
	return slots
}

func normalizeHour(h int) int {
	h %= 24
	if h < 0 {
		h += 24
	}
	return h
}
