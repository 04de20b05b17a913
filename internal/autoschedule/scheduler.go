package autoschedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"brandops/internal/brand"
	"brandops/internal/eventbus"
	"brandops/internal/job"
	"brandops/internal/publish"
	"brandops/internal/render"
	"brandops/internal/schedule"
	logx "brandops/pkg/logx"
)

type Config struct {
	// BaseHours are the daily anchors shifted by each brand's offset.
	// Empty means schedule.DefaultBaseHours.
	BaseHours []int

	// SubmitTimeout bounds each publish call. 0 means 30s.
	SubmitTimeout time.Duration

	// StatusTimeout bounds each status write. 0 means 10s.
	StatusTimeout time.Duration

	// Location is the timezone slots are computed in. nil means time.Local.
	Location *time.Location
}

type Option func(*Scheduler)

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithBus publishes per-brand and per-batch events.
func WithBus(bus eventbus.Bus) Option {
	return func(s *Scheduler) { s.bus = bus }
}

// WithStatusUpdater sets where COMPLETED -> SCHEDULED is persisted.
func WithStatusUpdater(u StatusUpdater) Option {
	return func(s *Scheduler) { s.status = u }
}

type Scheduler struct {
	mu        sync.RWMutex
	cfg       Config
	brands    *brand.Registry
	renderer  Renderer
	publisher Publisher
	status    StatusUpdater
	bus       eventbus.Bus
	log       logx.Logger
	now       func() time.Time
}

func (c Config) withDefaults() Config {
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = 30 * time.Second
	}
	if c.StatusTimeout <= 0 {
		c.StatusTimeout = 10 * time.Second
	}
	if len(c.BaseHours) == 0 {
		c.BaseHours = schedule.DefaultBaseHours
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	return c
}

func New(cfg Config, brands *brand.Registry, r Renderer, p Publisher, log logx.Logger, opts ...Option) *Scheduler {
	cfg = cfg.withDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	if brands == nil {
		brands = brand.NewRegistry(nil)
	}
	s := &Scheduler{
		cfg:       cfg,
		brands:    brands,
		renderer:  r,
		publisher: p,
		log:       log,
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Apply swaps the config. A batch already running keeps the config it
// started with.
func (s *Scheduler) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *Scheduler) config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Check verifies the batch precondition without side effects.
func Check(j *job.Job) error {
	if j == nil {
		return ErrNilJob
	}
	if id, st, bad := j.FirstUnschedulable(); bad {
		label := string(st)
		if label == "" {
			label = "missing"
		}
		return fmt.Errorf("%w: brand %q is %s", ErrPrecondition, id, label)
	}
	return nil
}

// Run schedules every brand of j, in order, and returns the aggregate.
//
// Brand outputs in j are mutated (COMPLETED -> SCHEDULED) for accepted
// submissions; the caller must not touch j until Run returns. Cancelling ctx
// does not stop the batch: brands still get attempted so each one ends with
// a definite outcome.
func (s *Scheduler) Run(ctx context.Context, j *job.Job) (Result, error) {
	if err := Check(j); err != nil {
		s.log.Warn("auto-schedule refused", logx.Err(err))
		return Result{}, err
	}
	ctx = context.WithoutCancel(ctx)
	cfg := s.config()

	start := s.now()
	log := s.log.With(logx.String("job", j.ID))
	log.Info("auto-schedule started", logx.Int("brands", len(j.BrandIDs)))

	acc := tally{}
	for _, id := range j.BrandIDs {
		o := s.scheduleOne(ctx, cfg, log, j, id)
		acc = acc.add(o)
		s.publishBrand(j.ID, o)
	}

	res := Result{
		JobID:     j.ID,
		Scheduled: acc.scheduled,
		Failed:    acc.failed,
		Outcomes:  acc.outcomes,
		Started:   start,
		Took:      s.now().Sub(start),
	}
	s.publishFinished(res)

	fields := []logx.Field{
		logx.Int("scheduled", res.Scheduled),
		logx.Int("failed", res.Failed),
		logx.Duration("took", res.Took),
	}
	if res.Failed > 0 {
		log.Warn("auto-schedule finished with failures", fields...)
	} else {
		log.Info("auto-schedule finished", fields...)
	}
	return res, nil
}

func (s *Scheduler) scheduleOne(ctx context.Context, cfg Config, log logx.Logger, j *job.Job, brandID string) Outcome {
	o := Outcome{BrandID: brandID, Stage: StageCheck}
	log = log.With(logx.String("brand", brandID))

	out := j.Output(brandID)
	if out != nil && out.Status == job.StatusScheduled {
		o.Stage = StageSkip
		o.Err = ErrAlreadyScheduled
		log.Debug("brand already scheduled")
		return o
	}
	if out == nil || out.Status != job.StatusCompleted {
		st := job.Status("missing")
		if out != nil {
			st = out.Status
		}
		o.Err = fmt.Errorf("%w: status %s", ErrNotCompleted, st)
		log.Debug("brand skipped", logx.String("status", string(st)))
		return o
	}

	o.Stage = StageRender
	img, err := s.render(ctx, brandID, out)
	if err != nil {
		o.Err = err
		log.Warn("render failed", logx.Err(err))
		return o
	}

	offset := s.offsetFor(log, brandID)
	o.ScheduleAt = schedule.NextSlot(s.now().In(cfg.Location), offset, cfg.BaseHours)

	o.Stage = StageSubmit
	sub := publish.Submission{
		Brand:        brandID,
		Title:        out.Title,
		Caption:      out.Caption,
		ImageData:    img,
		ScheduleTime: o.ScheduleAt,
	}
	if err := s.submit(ctx, cfg.SubmitTimeout, sub); err != nil {
		o.Err = err
		log.Warn("submission failed", logx.Err(err), logx.Time("at", o.ScheduleAt))
		return o
	}

	o.Stage = StageDone
	o.RemoteAccepted = true
	if err := out.Advance(job.StatusScheduled); err != nil {
		// Status was checked above and nobody else writes it during Run.
		log.Error("in-memory transition failed", logx.Err(err))
	}
	o.PersistErr = s.persist(ctx, cfg.StatusTimeout, j.ID, brandID)
	o.StatusPersisted = o.PersistErr == nil
	if o.PersistErr != nil {
		log.Warn("scheduled but status not persisted", logx.Err(o.PersistErr))
	} else {
		log.Info("brand scheduled", logx.Time("at", o.ScheduleAt))
	}
	return o
}

func (s *Scheduler) submit(ctx context.Context, timeout time.Duration, sub publish.Submission) error {
	if s.publisher == nil {
		return publish.ErrNoEndpoint
	}
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.publisher.Submit(sctx, sub)
}

func (s *Scheduler) render(ctx context.Context, brandID string, out *job.BrandOutput) (string, error) {
	if s.renderer == nil {
		return "", render.ErrNoArtifact
	}
	img, err := s.renderer.Render(ctx, render.Request{BrandID: brandID, Title: out.Title, Content: out.Content})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(img) == "" {
		return "", fmt.Errorf("%w: empty image", render.ErrNoArtifact)
	}
	return img, nil
}

var errNoStatusUpdater = errors.New("no status updater configured")

func (s *Scheduler) persist(ctx context.Context, timeout time.Duration, jobID, brandID string) error {
	if s.status == nil {
		return errNoStatusUpdater
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.status.UpdateStatus(pctx, jobID, brandID, job.StatusScheduled)
}

// offsetFor looks up the brand's configured offset. Unknown brands post at
// the unshifted base hours.
func (s *Scheduler) offsetFor(log logx.Logger, brandID string) int {
	b, ok := s.brands.Get(brandID)
	if !ok {
		log.Warn("brand not in registry; using offset 0", logx.Err(brand.ErrUnknownBrand))
		return 0
	}
	return b.OffsetHours
}

func (s *Scheduler) publishBrand(jobID string, o Outcome) {
	if s.bus == nil {
		return
	}
	ev := BrandEvent{
		JobID:           jobID,
		BrandID:         o.BrandID,
		Stage:           o.Stage,
		Scheduled:       o.Scheduled(),
		StatusPersisted: o.StatusPersisted,
		ScheduleAt:      o.ScheduleAt,
	}
	if o.Err != nil {
		ev.Error = o.Err.Error()
	}
	s.bus.Publish(eventbus.Event{Type: EventBrand, Time: s.now(), Data: ev})
}

func (s *Scheduler) publishFinished(res Result) {
	if s.bus == nil {
		return
	}
	ev := FinishedEvent{JobID: res.JobID, Scheduled: res.Scheduled, Failed: res.Failed, Took: res.Took}
	for _, o := range res.Outcomes {
		if o.Degraded() {
			ev.Degraded++
		}
		switch {
		case o.AlreadyScheduled():
			ev.AlreadyScheduled = append(ev.AlreadyScheduled, o.BrandID)
		case !o.Scheduled():
			ev.Failures = append(ev.Failures, o.BrandID)
		}
	}
	s.bus.Publish(eventbus.Event{Type: EventFinished, Time: s.now(), Data: ev})
}
