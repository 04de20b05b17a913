package scheduler

import (
	"errors"
	"time"

	"brandops/internal/task/engine"
	logx "brandops/pkg/logx"
)

const enqueueWarnThrottle = 30 * time.Second

// reportEnqueueError logs a refused batch at most once per throttle window per job.
func (s *Service) reportEnqueueError(jobID string, err error) {
	if err == nil {
		return
	}
	// A batch for the same job still queued or running is routine.
	if errors.Is(err, engine.ErrOverlapSkip) {
		s.log.Debug("batch already in flight", logx.String("job", jobID))
		return
	}

	now := time.Now()
	s.enqMu.Lock()
	last := s.lastEnqWarn[jobID]
	if !last.IsZero() && now.Sub(last) < enqueueWarnThrottle {
		s.enqMu.Unlock()
		return
	}
	s.lastEnqWarn[jobID] = now
	s.enqMu.Unlock()

	s.log.Warn("batch enqueue failed", logx.String("job", jobID), logx.Err(err))
}
