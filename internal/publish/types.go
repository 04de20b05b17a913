// Package publish talks to the external publishing platform: post submission
// and job status updates.
package publish

import (
	"errors"
	"fmt"
	"time"
)

var ErrNoEndpoint = errors.New("publish endpoint not configured")

// Submission is one post handed to the platform, to go out at ScheduleTime.
type Submission struct {
	Brand        string
	Title        string
	Caption      string
	ImageData    string // base64
	ScheduleTime time.Time
}

type submissionWire struct {
	Brand        string `json:"brand"`
	Title        string `json:"title"`
	Caption      string `json:"caption"`
	ImageData    string `json:"image_data"`
	ScheduleTime string `json:"schedule_time"`
}

func (s Submission) wire() submissionWire {
	return submissionWire{
		Brand:        s.Brand,
		Title:        s.Title,
		Caption:      s.Caption,
		ImageData:    s.ImageData,
		ScheduleTime: s.ScheduleTime.Format(time.RFC3339),
	}
}

type statusWire struct {
	JobID  string `json:"job_id"`
	Brand  string `json:"brand"`
	Status string `json:"status"`
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("publish: unexpected status %d", e.Code)
	}
	return fmt.Sprintf("publish: unexpected status %d: %s", e.Code, e.Body)
}

// Temporary reports whether retrying the same request could succeed.
func (e *StatusError) Temporary() bool {
	return e.Code == 408 || e.Code == 429 || e.Code >= 500
}

type Config struct {
	SubmitURL  string
	StatusURL  string
	Token      string
	Timeout    time.Duration
	RatePerSec int
}
