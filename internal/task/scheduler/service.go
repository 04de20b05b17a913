package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"brandops/internal/autoschedule"
	"brandops/internal/eventbus"
	"brandops/internal/job"
	"brandops/internal/storage"
	"brandops/internal/task/engine"
	logx "brandops/pkg/logx"
)

const taskName = "autoschedule"

func New(cfg Config, eng *engine.Service, jobs Jobs, runner Runner, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg,
		log:    log,
		bus:    bus,
		engine: eng,
		jobs:   jobs,
		runner: runner,
		// SecondOptional allows both 5-field and 6-field cron specs.
		parser:      cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		lastEnqWarn: map[string]time.Time{},
		held:        map[string][]string{},
	}
}

// Enabled reports the current config flag.
func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled
	s.mu.Unlock()
	return en
}

// Apply swaps the config. A running trigger is re-registered when the
// schedule, timezone or enabled flag changes.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.cfg
	s.cfg = cfg
	if old.Every == cfg.Every && old.Timezone == cfg.Timezone && old.Enabled == cfg.Enabled {
		return
	}
	if s.c != nil {
		<-s.c.Stop().Done()
		s.c = nil
		s.entry = 0
	}
	if cfg.Enabled {
		if err := s.startLocked(); err != nil {
			s.log.Error("sweep restart failed", logx.Err(err))
		}
	}
}

// Start registers the sweep trigger. It is a no-op when disabled or running.
func (s *Service) Start(ctx context.Context) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil || !s.cfg.Enabled {
		return nil
	}
	return s.startLocked()
}

func (s *Service) startLocked() error {
	raw := strings.TrimSpace(s.cfg.Every)
	if raw == "" {
		raw = defaultEvery
	}
	ps, err := ParseSchedule(raw)
	if err != nil {
		return err
	}

	loc := s.loadLocationLocked()
	c := cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	job := cron.FuncJob(func() {
		if _, err := s.Sweep(context.Background()); err != nil {
			s.log.Warn("sweep failed", logx.Err(err))
		}
	})

	var (
		eid  cron.EntryID
		spec string
	)
	switch ps.Kind {
	case SpecInterval:
		sched, jitter := intervalWithSpread(ps.Every, time.Now().In(loc), taskName)
		eid = c.Schedule(sched, job)
		spec = "@every " + ps.Every.String()
		s.log.Debug("sweep startup spread", logx.Duration("jitter", jitter))
	default:
		eid, err = c.AddJob(ps.Cron, job)
		if err != nil {
			return fmt.Errorf("sweep schedule %q: %w", ps.Cron, err)
		}
		spec = ps.Cron
	}

	c.Start()
	s.c, s.entry, s.spec, s.loc = c, eid, spec, loc
	s.log.Info("sweep scheduled", logx.String("spec", spec), logx.String("tz", loc.String()), logx.Time("next", c.Entry(eid).Next))
	return nil
}

// Stop stops triggering. Batches already handed to the engine keep running.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.entry = 0
	s.mu.Unlock()

	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("sweep stopped")
}

// Sweep lists stored jobs and hands every ready one to the engine.
// It returns the number of jobs accepted by the engine.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	if s.jobs == nil {
		return 0, storage.ErrDisabled
	}
	list, err := s.jobs.ListJobs(ctx)
	if err != nil {
		return 0, err
	}

	ready, submitted := 0, 0
	for _, j := range list {
		if !j.ReadyForScheduling() {
			continue
		}
		if brands := s.heldBack(j); len(brands) > 0 {
			s.log.Debug("job held back", logx.String("job", j.ID), logx.Strings("unrecorded", brands))
			continue
		}
		ready++
		if err := s.engine.Enqueue(s.batchTask(j.ID, nil)); err != nil {
			s.reportEnqueueError(j.ID, err)
			continue
		}
		submitted++
	}

	s.smu.Lock()
	s.sweeps++
	s.lastSweep = time.Now()
	s.lastReady = ready
	s.smu.Unlock()

	if ready > 0 {
		s.log.Debug("sweep done", logx.Int("jobs", len(list)), logx.Int("ready", ready), logx.Int("submitted", submitted))
	}
	return submitted, nil
}

// RunNow runs one batch for jobID through the engine and waits for its result.
func (s *Service) RunNow(ctx context.Context, jobID string) (autoschedule.Result, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return autoschedule.Result{}, errors.New("job id required")
	}
	if s.jobs == nil {
		return autoschedule.Result{}, storage.ErrDisabled
	}
	done := make(chan batchResult, 1)
	t := s.batchTask(jobID, done)
	t.Opt.RetryMax = -1
	if err := s.engine.Submit(ctx, t); err != nil {
		return autoschedule.Result{}, err
	}
	select {
	case r := <-done:
		return r.res, r.err
	case <-ctx.Done():
		return autoschedule.Result{}, ctx.Err()
	}
}

func (s *Service) batchTask(jobID string, done chan<- batchResult) engine.Task {
	s.mu.Lock()
	timeout := s.cfg.BatchTimeout
	s.mu.Unlock()

	return engine.Task{
		Name:    taskName,
		Key:     "job:" + jobID,
		Timeout: timeout,
		Opt:     engine.TaskOptions{Overlap: engine.OverlapSkipIfRunning},
		Run: func(ctx context.Context) (err error) {
			var res autoschedule.Result
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: %v", ErrBatchPanic, r)
					s.log.Error("batch panicked", logx.String("job", jobID), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
				}
				if done != nil {
					select {
					case done <- batchResult{res: res, err: err}:
					default:
					}
				}
				if errors.Is(err, autoschedule.ErrPrecondition) || errors.Is(err, storage.ErrNotFound) || errors.Is(err, ErrBatchPanic) {
					err = engine.NoRetry(err)
				}
			}()
			res, err = s.runBatch(ctx, jobID)
			return err
		},
	}
}

func (s *Service) runBatch(ctx context.Context, jobID string) (autoschedule.Result, error) {
	j, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return autoschedule.Result{}, err
	}

	res, err := s.runner.Run(ctx, j)
	entry := storage.AuditEntry{
		At:     time.Now(),
		JobID:  jobID,
		Action: taskName,
		OK:     res.Scheduled,
		Fail:   res.Failed,
		TookMS: res.Took.Milliseconds(),
	}
	if err != nil {
		entry.Error = err.Error()
	} else {
		unrecorded := degradedBrands(res)
		if len(unrecorded) > 0 {
			meta, _ := json.Marshal(auditMeta{Degraded: unrecorded})
			entry.MetaJSON = string(meta)
			s.log.Warn("job held back until brand status is recorded", logx.String("job", jobID), logx.Strings("brands", unrecorded))
		}
		s.hold(jobID, unrecorded)
	}
	if aerr := s.jobs.AppendAudit(context.WithoutCancel(ctx), entry); aerr != nil {
		s.log.Warn("audit append failed", logx.String("job", jobID), logx.Err(aerr))
	}
	return res, err
}

type auditMeta struct {
	Degraded []string `json:"degraded,omitempty"`
}

func degradedBrands(res autoschedule.Result) []string {
	var ids []string
	for _, o := range res.Outcomes {
		if o.Degraded() {
			ids = append(ids, o.BrandID)
		}
	}
	return ids
}

// hold replaces the held-back brands of jobID with the latest batch's.
func (s *Service) hold(jobID string, brandIDs []string) {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	if len(brandIDs) == 0 {
		delete(s.held, jobID)
		return
	}
	s.held[jobID] = brandIDs
}

// heldBack returns the held brands of j still COMPLETED in storage. The hold
// is dropped once none is left.
func (s *Service) heldBack(j *job.Job) []string {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	var pending []string
	for _, id := range s.held[j.ID] {
		if j.StatusOf(id) == job.StatusCompleted {
			pending = append(pending, id)
		}
	}
	if len(pending) == 0 {
		delete(s.held, j.ID)
	}
	return pending
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}
