package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"brandops/internal/job"
	logx "brandops/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.jobs.json   (full snapshot, rewritten atomically on every change)
//   - <prefix>.audit.jsonl (append-only JSON Lines)
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	jobsPath  string
	jobs      map[string]*job.Job
	auditFile *os.File
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	jobsPath := prefix + ".jobs.json"
	jobs, err := loadJobsSnapshot(jobsPath)
	if err != nil {
		return nil, err
	}

	af, err := os.OpenFile(prefix+".audit.jsonl", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	log.Debug("file store opened", logx.String("jobs", jobsPath), logx.Int("loaded", len(jobs)))
	return &fileStore{log: log, jobsPath: jobsPath, jobs: jobs, auditFile: af}, nil
}

func loadJobsSnapshot(path string) (map[string]*job.Job, error) {
	jobs := map[string]*job.Job{}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return jobs, nil
	}
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return jobs, nil
	}
	var list []*job.Job
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, fmt.Errorf("jobs snapshot %s: %w", path, err)
	}
	for _, j := range list {
		if j != nil && j.ID != "" {
			jobs[j.ID] = j
		}
	}
	return jobs, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile != nil {
		err := s.auditFile.Close()
		s.auditFile = nil
		return err
	}
	return nil
}

func (s *fileStore) PutJob(ctx context.Context, j *job.Job) error {
	_ = ctx
	if j == nil || strings.TrimSpace(j.ID) == "" {
		return errors.New("job id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.jobs[j.ID]
	s.jobs[j.ID] = j.Clone()
	if err := s.flushLocked(); err != nil {
		if prev == nil {
			delete(s.jobs, j.ID)
		} else {
			s.jobs[j.ID] = prev
		}
		return err
	}
	return nil
}

func (s *fileStore) GetJob(ctx context.Context, id string) (*job.Job, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %q: %w", id, ErrNotFound)
	}
	return j.Clone(), nil
}

func (s *fileStore) ListJobs(ctx context.Context) ([]*job.Job, error) {
	_ = ctx
	s.mu.Lock()
	out := make([]*job.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.Clone())
	}
	s.mu.Unlock()
	sortJobs(out)
	return out, nil
}

func (s *fileStore) UpdateStatus(ctx context.Context, jobID, brandID string, st job.Status) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("job %q: %w", jobID, ErrNotFound)
	}
	o := j.Output(brandID)
	if o == nil {
		return fmt.Errorf("job %q brand %q: %w", jobID, brandID, ErrNotFound)
	}
	if o.Status == st {
		return nil
	}
	prev := *o
	if err := o.Advance(st); err != nil {
		return err
	}
	if err := s.flushLocked(); err != nil {
		*o = prev
		return err
	}
	return nil
}

func (s *fileStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	_ = ctx
	if e.At.IsZero() {
		e.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return errors.New("audit file closed")
	}
	return json.NewEncoder(s.auditFile).Encode(e)
}

// flushLocked writes the snapshot via temp file + rename.
func (s *fileStore) flushLocked() error {
	list := make([]*job.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		list = append(list, j)
	}
	sortJobs(list)
	b, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.jobsPath + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.jobsPath)
}

func sortJobs(list []*job.Job) {
	sort.Slice(list, func(i, k int) bool {
		if list[i].CreatedAt.Equal(list[k].CreatedAt) {
			return list[i].ID < list[k].ID
		}
		return list[i].CreatedAt.Before(list[k].CreatedAt)
	})
}
