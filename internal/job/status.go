package job

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the lifecycle state of one brand's output within a job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusScheduled  Status = "scheduled"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// transitions lists every allowed forward edge. Nothing moves backwards;
// FAILED -> PENDING is only reachable through BrandOutput.Reset (retry).
var transitions = map[Status][]Status{
	StatusPending:    {StatusGenerating},
	StatusGenerating: {StatusCompleted, StatusFailed},
	StatusCompleted:  {StatusScheduled},
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusGenerating, StatusCompleted, StatusFailed, StatusScheduled:
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no forward transition leaves s.
func (s Status) Terminal() bool { return len(transitions[s]) == 0 }

// Schedulable reports whether an auto-schedule batch may include a brand in s.
func (s Status) Schedulable() bool { return s == StatusCompleted || s == StatusScheduled }
