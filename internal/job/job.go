// Package job models one multi-brand publishing job and the per-brand output
// lifecycle (pending -> generating -> completed/failed -> scheduled).
package job

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BrandOutput is the generated content for one brand within a job.
type BrandOutput struct {
	Status      Status    `json:"status"`
	Title       string    `json:"title,omitempty"`
	Caption     string    `json:"caption,omitempty"`
	Content     []string  `json:"content,omitempty"`
	ArtifactRef string    `json:"artifact_ref,omitempty"`
	Error       string    `json:"error,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// Advance moves the output to the given status if the edge exists.
func (o *BrandOutput) Advance(to Status) error {
	if !o.Status.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	return nil
}

// Reset re-enters PENDING after a failed attempt.
func (o *BrandOutput) Reset() error {
	if o.Status != StatusFailed {
		return fmt.Errorf("%w: reset from %s", ErrInvalidTransition, o.Status)
	}
	o.Status = StatusPending
	o.Error = ""
	o.UpdatedAt = time.Now()
	return nil
}

// Job is one batch spanning several brands. BrandIDs order is the processing order.
type Job struct {
	ID        string                  `json:"id"`
	BrandIDs  []string                `json:"brand_ids"`
	Outputs   map[string]*BrandOutput `json:"outputs"`
	CreatedAt time.Time               `json:"created_at"`
}

func NewID() string { return uuid.NewString() }

// New creates a job with a PENDING output per brand.
func New(brandIDs []string) *Job {
	j := &Job{
		ID:        NewID(),
		BrandIDs:  append([]string(nil), brandIDs...),
		Outputs:   make(map[string]*BrandOutput, len(brandIDs)),
		CreatedAt: time.Now(),
	}
	for _, id := range brandIDs {
		j.Outputs[id] = &BrandOutput{Status: StatusPending, UpdatedAt: j.CreatedAt}
	}
	return j
}

// Output returns the brand's output, or nil if the job has none.
func (j *Job) Output(brandID string) *BrandOutput {
	if j == nil || j.Outputs == nil {
		return nil
	}
	return j.Outputs[brandID]
}

// StatusOf returns the brand's status ("" if missing).
func (j *Job) StatusOf(brandID string) Status {
	if o := j.Output(brandID); o != nil {
		return o.Status
	}
	return ""
}

// FirstUnschedulable returns the first brand (in processing order) whose
// output is missing or not in COMPLETED/SCHEDULED.
func (j *Job) FirstUnschedulable() (string, Status, bool) {
	for _, id := range j.BrandIDs {
		st := j.StatusOf(id)
		if !st.Schedulable() {
			return id, st, true
		}
	}
	return "", "", false
}

// ReadyForScheduling reports whether a batch would pass its precondition and
// still has at least one COMPLETED brand left to submit.
func (j *Job) ReadyForScheduling() bool {
	if j == nil || len(j.BrandIDs) == 0 {
		return false
	}
	if _, _, bad := j.FirstUnschedulable(); bad {
		return false
	}
	for _, id := range j.BrandIDs {
		if j.StatusOf(id) == StatusCompleted {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	cp.BrandIDs = append([]string(nil), j.BrandIDs...)
	cp.Outputs = make(map[string]*BrandOutput, len(j.Outputs))
	for k, o := range j.Outputs {
		if o == nil {
			continue
		}
		oc := *o
		oc.Content = append([]string(nil), o.Content...)
		cp.Outputs[k] = &oc
	}
	return &cp
}
