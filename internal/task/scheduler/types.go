package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"brandops/internal/autoschedule"
	"brandops/internal/eventbus"
	"brandops/internal/job"
	"brandops/internal/storage"
	"brandops/internal/task/engine"
	logx "brandops/pkg/logx"
)

const defaultEvery = "5m"

// ErrBatchPanic wraps a panic raised while a batch was running.
var ErrBatchPanic = errors.New("auto-schedule batch panicked")

// Config controls the sweep trigger.
type Config struct {
	Enabled  bool
	Every    string // see ParseSchedule; default "5m"
	Timezone string // IANA TZ used for cron expressions
	// BatchTimeout bounds one engine task; 0 uses the engine default.
	BatchTimeout time.Duration
}

// Jobs is the slice of storage the sweep needs.
type Jobs interface {
	GetJob(ctx context.Context, id string) (*job.Job, error)
	ListJobs(ctx context.Context) ([]*job.Job, error)
	AppendAudit(ctx context.Context, e storage.AuditEntry) error
}

// Runner executes one auto-schedule batch.
type Runner interface {
	Run(ctx context.Context, j *job.Job) (autoschedule.Result, error)
}

type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	loc *time.Location
	bus eventbus.Bus

	engine *engine.Service
	jobs   Jobs
	runner Runner

	parser cron.Parser
	c      *cron.Cron
	entry  cron.EntryID
	spec   string

	enqMu       sync.Mutex
	lastEnqWarn map[string]time.Time

	// held maps a job ID to brands the platform accepted but whose status
	// was never recorded. The sweep skips such jobs while any of those
	// brands is still COMPLETED in storage.
	hmu  sync.Mutex
	held map[string][]string

	smu       sync.Mutex
	sweeps    uint64
	lastSweep time.Time
	lastReady int
}

type batchResult struct {
	res autoschedule.Result
	err error
}

type Snapshot struct {
	Enabled   bool
	Timezone  string
	Spec      string
	Next      time.Time
	Prev      time.Time
	Sweeps    uint64
	LastSweep time.Time
	LastReady int
	Held      int
	Engine    engine.Snapshot
}
