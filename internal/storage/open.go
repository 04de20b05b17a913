package storage

import (
	"context"
	"errors"
	"strings"

	"brandops/internal/job"
	logx "brandops/pkg/logx"
)

// Store is the persistence API used by the app and the auto-scheduler.
//
// UpdateStatus enforces the brand output state machine: an edge that
// job.Status.CanTransition rejects fails with job.ErrInvalidTransition.
// Writing the status a brand already has is a no-op.
type Store interface {
	PutJob(ctx context.Context, j *job.Job) error
	GetJob(ctx context.Context, id string) (*job.Job, error)
	ListJobs(ctx context.Context) ([]*job.Job, error)
	UpdateStatus(ctx context.Context, jobID, brandID string, st job.Status) error
	AppendAudit(ctx context.Context, e AuditEntry) error
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
