package brand

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		b    Brand
		want error
	}{
		{name: "ok", b: Brand{ID: "a", OffsetHours: 5, PostsPerDay: 6}},
		{name: "empty id", b: Brand{ID: " ", PostsPerDay: 2}, want: ErrEmptyID},
		{name: "offset low", b: Brand{ID: "a", OffsetHours: -1, PostsPerDay: 2}, want: ErrOffsetRange},
		{name: "offset high", b: Brand{ID: "a", OffsetHours: 24, PostsPerDay: 2}, want: ErrOffsetRange},
		{name: "frequency", b: Brand{ID: "a", PostsPerDay: 5}, want: ErrPostsPerDay},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.b.Validate()
			if tt.want == nil && err != nil {
				t.Fatalf("Validate() = %v, want nil", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidateAllRejectsDuplicates(t *testing.T) {
	t.Parallel()
	err := ValidateAll([]Brand{{ID: "a"}, {ID: "b", OffsetHours: 3}, {ID: "a", OffsetHours: 1}})
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("ValidateAll() = %v, want ErrDuplicateID", err)
	}
	if err := ValidateAll([]Brand{{ID: "a"}, {ID: "b", OffsetHours: 0}}); err != nil {
		t.Fatalf("shared offsets must be allowed: %v", err)
	}
}

func TestRegistryKeepsOrderAndDefaults(t *testing.T) {
	t.Parallel()
	r := NewRegistry([]Brand{{ID: "b", OffsetHours: 2}, {ID: "a", OffsetHours: 1}, {ID: ""}})
	all := r.All()
	if len(all) != 2 || all[0].ID != "b" || all[1].ID != "a" {
		t.Fatalf("unexpected order: %+v", all)
	}
	got, ok := r.Get("a")
	if !ok || got.PostsPerDay != defaultPostsPerDay {
		t.Fatalf("Get(a) = %+v (ok=%v), want default posts_per_day", got, ok)
	}

	r.Replace([]Brand{{ID: "c", Name: "Gamma"}})
	if r.Len() != 1 {
		t.Fatalf("Len() = %d after Replace, want 1", r.Len())
	}
	if _, ok := r.Get("a"); ok {
		t.Fatalf("stale brand survived Replace")
	}
	if c, _ := r.Get("c"); c.DisplayName() != "Gamma" {
		t.Fatalf("DisplayName() = %q, want Gamma", c.DisplayName())
	}
}
