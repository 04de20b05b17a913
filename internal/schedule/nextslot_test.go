package schedule

import (
	"testing"
	"time"
)

func at(h, m int) time.Time {
	return time.Date(2024, time.March, 10, h, m, 0, 0, time.UTC)
}

func TestNextSlot(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		now    time.Time
		offset int
		want   time.Time
	}{
		{name: "noon slot shifted", now: at(14, 30), offset: 3, want: at(15, 0)},
		{name: "midnight slot still ahead", now: at(1, 0), offset: 3, want: at(3, 0)},
		{name: "fallback tomorrow", now: at(23, 50), offset: 0, want: time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC)},
		{name: "equal is not future", now: at(12, 0), offset: 0, want: time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC)},
		{name: "noon plus offset rolls over", now: at(20, 0), offset: 15, want: time.Date(2024, time.March, 11, 3, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := NextSlot(tt.now, tt.offset, DefaultBaseHours)
			if !got.Equal(tt.want) {
				t.Fatalf("NextSlot(%s, %d) = %s, want %s", tt.now.Format(time.RFC3339), tt.offset, got.Format(time.RFC3339), tt.want.Format(time.RFC3339))
			}
		})
	}
}

func TestNextSlotAlwaysFuture(t *testing.T) {
	t.Parallel()
	start := at(0, 0)
	for m := 0; m < 48*60; m += 7 {
		now := start.Add(time.Duration(m) * time.Minute)
		for offset := 0; offset < 24; offset++ {
			got := NextSlot(now, offset, []int{12, 0})
			if !got.After(now) {
				t.Fatalf("NextSlot(%s, %d) = %s, not after now", now, offset, got)
			}
			if got.Sub(now) > 25*time.Hour {
				t.Fatalf("NextSlot(%s, %d) = %s, too far ahead", now, offset, got)
			}
		}
	}
}

func TestNextSlotDoesNotMutateBaseHours(t *testing.T) {
	t.Parallel()
	base := []int{12, 0}
	_ = NextSlot(at(5, 0), 1, base)
	if base[0] != 12 || base[1] != 0 {
		t.Fatalf("base hours mutated: %v", base)
	}
}
