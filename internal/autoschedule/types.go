package autoschedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"brandops/internal/job"
	"brandops/internal/publish"
	"brandops/internal/render"
)

var (
	ErrPrecondition = errors.New("auto-schedule precondition failed")
	ErrNotCompleted = errors.New("brand output not completed")
	ErrNilJob       = errors.New("job is nil")

	// ErrAlreadyScheduled is the ErrNotCompleted case of a brand whose post
	// went out in an earlier batch.
	ErrAlreadyScheduled = fmt.Errorf("%w: already scheduled", ErrNotCompleted)
)

// Event types published on the bus.
const (
	EventBrand    = "autoschedule.brand"
	EventFinished = "autoschedule.finished"
)

type Renderer interface {
	Render(ctx context.Context, req render.Request) (string, error)
}

type Publisher interface {
	Submit(ctx context.Context, s publish.Submission) error
}

// StatusUpdater persists a brand's status change for a job.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, jobID, brandID string, st job.Status) error
}

// Stage names the step at which a brand's attempt stopped.
type Stage string

const (
	StageCheck  Stage = "check"
	StageSkip   Stage = "skip"
	StageRender Stage = "render"
	StageSubmit Stage = "submit"
	StageDone   Stage = "done"
)

// Outcome is the result of one brand's attempt.
//
// RemoteAccepted is the source of truth for "scheduled": once the platform
// accepted the post it will go out, so a failed status write afterwards only
// clears StatusPersisted (and sets PersistErr) instead of counting as failure.
type Outcome struct {
	BrandID         string
	Stage           Stage
	ScheduleAt      time.Time
	RemoteAccepted  bool
	StatusPersisted bool
	Err             error
	PersistErr      error
}

func (o Outcome) Scheduled() bool { return o.RemoteAccepted }

// AlreadyScheduled reports a brand left alone because an earlier batch
// scheduled it. It still counts as failed for this batch.
func (o Outcome) AlreadyScheduled() bool { return errors.Is(o.Err, ErrAlreadyScheduled) }

// Degraded reports a scheduled post whose status could not be recorded.
func (o Outcome) Degraded() bool { return o.RemoteAccepted && !o.StatusPersisted }

// Result is the aggregate of one batch.
type Result struct {
	JobID     string
	Scheduled int
	Failed    int
	Outcomes  []Outcome
	Started   time.Time
	Took      time.Duration
}

// Attempted is the number of brands the batch went through.
func (r Result) Attempted() int { return len(r.Outcomes) }

func (r Result) Summary() string {
	return fmt.Sprintf("%d scheduled, %d failed", r.Scheduled, r.Failed)
}

// tally accumulates outcomes. It is a value: each add returns a new tally,
// so the batch loop is a plain fold over the ordered brand list.
type tally struct {
	scheduled int
	failed    int
	outcomes  []Outcome
}

func (t tally) add(o Outcome) tally {
	next := tally{
		scheduled: t.scheduled,
		failed:    t.failed,
		outcomes:  append(t.outcomes[:len(t.outcomes):len(t.outcomes)], o),
	}
	if o.Scheduled() {
		next.scheduled++
	} else {
		next.failed++
	}
	return next
}

// BrandEvent is the payload of EventBrand.
type BrandEvent struct {
	JobID           string    `json:"job_id"`
	BrandID         string    `json:"brand_id"`
	Stage           Stage     `json:"stage"`
	Scheduled       bool      `json:"scheduled"`
	StatusPersisted bool      `json:"status_persisted"`
	ScheduleAt      time.Time `json:"schedule_at,omitempty"`
	Error           string    `json:"error,omitempty"`
}

// FinishedEvent is the payload of EventFinished.
type FinishedEvent struct {
	JobID     string        `json:"job_id"`
	Scheduled int           `json:"scheduled"`
	Failed    int           `json:"failed"`
	Degraded  int           `json:"degraded"`
	Failures  []string      `json:"failures,omitempty"`
	// AlreadyScheduled lists brands counted in Failed that were scheduled by
	// an earlier batch. They are not in Failures.
	AlreadyScheduled []string `json:"already_scheduled,omitempty"`
	Took      time.Duration `json:"took"`
}

// Unsuccessful is the number of brands that failed in this batch, leaving
// out those scheduled earlier.
func (e FinishedEvent) Unsuccessful() int { return e.Failed - len(e.AlreadyScheduled) }
