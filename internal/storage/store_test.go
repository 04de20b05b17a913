package storage

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"brandops/internal/job"
	logx "brandops/pkg/logx"
)

func openDrivers(t *testing.T) map[string]func() Store {
	t.Helper()
	dir := t.TempDir()
	open := func(driver, name string) func() Store {
		return func() Store {
			st, err := Open(Config{Driver: driver, Path: filepath.Join(dir, name)}, logx.Nop())
			if err != nil {
				t.Fatalf("Open(%s): %v", driver, err)
			}
			return st
		}
	}
	return map[string]func() Store{
		"file":   open("file", "store.db"),
		"sqlite": open("sqlite", "store.sqlite"),
	}
}

func sampleJob() *job.Job {
	j := job.New([]string{"b", "a"})
	j.ID = "job-1"
	j.CreatedAt = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	o := j.Outputs["a"]
	o.Status = job.StatusCompleted
	o.Title = "Hello"
	o.Caption = "World"
	o.Content = []string{"one", "two"}
	j.Outputs["b"].Status = job.StatusGenerating
	return j
}

func TestStoreRoundTrip(t *testing.T) {
	for name, open := range openDrivers(t) {
		open := open
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := open()
			defer st.Close()

			if err := st.PutJob(ctx, sampleJob()); err != nil {
				t.Fatalf("PutJob: %v", err)
			}
			got, err := st.GetJob(ctx, "job-1")
			if err != nil {
				t.Fatalf("GetJob: %v", err)
			}
			if len(got.BrandIDs) != 2 || got.BrandIDs[0] != "b" || got.BrandIDs[1] != "a" {
				t.Fatalf("brand order lost: %v", got.BrandIDs)
			}
			a := got.Output("a")
			if a == nil || a.Status != job.StatusCompleted || a.Title != "Hello" || a.Caption != "World" || len(a.Content) != 2 {
				t.Fatalf("output a = %+v", a)
			}
			if !got.CreatedAt.Equal(time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)) {
				t.Fatalf("CreatedAt = %v", got.CreatedAt)
			}

			if _, err := st.GetJob(ctx, "nope"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("GetJob(nope) = %v, want ErrNotFound", err)
			}

			other := job.New([]string{"c"})
			other.CreatedAt = time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
			if err := st.PutJob(ctx, other); err != nil {
				t.Fatalf("PutJob(other): %v", err)
			}
			list, err := st.ListJobs(ctx)
			if err != nil {
				t.Fatalf("ListJobs: %v", err)
			}
			if len(list) != 2 || list[0].ID != "job-1" || list[1].ID != other.ID {
				t.Fatalf("ListJobs order: %v", list)
			}
		})
	}
}

func TestStoreUpdateStatusEnforcesTransitions(t *testing.T) {
	for name, open := range openDrivers(t) {
		open := open
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := open()
			defer st.Close()
			if err := st.PutJob(ctx, sampleJob()); err != nil {
				t.Fatalf("PutJob: %v", err)
			}

			if err := st.UpdateStatus(ctx, "job-1", "a", job.StatusScheduled); err != nil {
				t.Fatalf("completed -> scheduled: %v", err)
			}
			if err := st.UpdateStatus(ctx, "job-1", "a", job.StatusScheduled); err != nil {
				t.Fatalf("repeat write should be a no-op: %v", err)
			}
			if err := st.UpdateStatus(ctx, "job-1", "b", job.StatusScheduled); !errors.Is(err, job.ErrInvalidTransition) {
				t.Fatalf("generating -> scheduled = %v, want ErrInvalidTransition", err)
			}
			if err := st.UpdateStatus(ctx, "job-1", "zzz", job.StatusScheduled); !errors.Is(err, ErrNotFound) {
				t.Fatalf("unknown brand = %v, want ErrNotFound", err)
			}

			got, err := st.GetJob(ctx, "job-1")
			if err != nil {
				t.Fatalf("GetJob: %v", err)
			}
			if got.StatusOf("a") != job.StatusScheduled || got.StatusOf("b") != job.StatusGenerating {
				t.Fatalf("statuses a=%s b=%s", got.StatusOf("a"), got.StatusOf("b"))
			}
		})
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "s.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	j := sampleJob()
	if err := st.PutJob(ctx, j); err != nil {
		t.Fatalf("PutJob: %v", err)
	}
	j.Outputs["a"].Status = job.StatusFailed
	got, _ := st.GetJob(ctx, "job-1")
	got.Outputs["b"].Status = job.StatusFailed
	again, _ := st.GetJob(ctx, "job-1")
	if again.StatusOf("a") != job.StatusCompleted || again.StatusOf("b") != job.StatusGenerating {
		t.Fatalf("store shares memory with callers")
	}
}

func TestFileStoreReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "s.db")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := st.PutJob(ctx, sampleJob()); err != nil {
		t.Fatalf("PutJob: %v", err)
	}
	if err := st.AppendAudit(ctx, AuditEntry{JobID: "job-1", Action: "autoschedule", OK: 1, Fail: 1}); err != nil {
		t.Fatalf("AppendAudit: %v", err)
	}
	_ = st.Close()

	st2, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st2.Close()
	got, err := st2.GetJob(ctx, "job-1")
	if err != nil || got.StatusOf("a") != job.StatusCompleted {
		t.Fatalf("after reopen: %v %+v", err, got)
	}

	f, err := os.Open(filepath.Join(filepath.Dir(path), "s.audit.jsonl"))
	if err != nil {
		t.Fatalf("audit file: %v", err)
	}
	defer f.Close()
	lines := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines++
	}
	if lines != 1 {
		t.Fatalf("audit lines = %d, want 1", lines)
	}
}

func TestSQLiteAudit(t *testing.T) {
	ctx := context.Background()
	st, err := Open(Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "a.sqlite"), BusyTimeout: time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()
	if err := st.AppendAudit(ctx, AuditEntry{JobID: "j", Action: "autoschedule", OK: 2, Error: ""}); err != nil {
		t.Fatalf("AppendAudit: %v", err)
	}
	var n int
	if err := st.(*sqliteStore).db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit WHERE job_id = 'j' AND ok = 2`).Scan(&n); err != nil || n != 1 {
		t.Fatalf("audit rows = %d (%v), want 1", n, err)
	}
}

func TestOpenDisabledAndUnknown(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{Driver: "none"}, logx.Nop())
	if st != nil || err != nil {
		t.Fatalf("Open(none) = %v, %v", st, err)
	}
	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

type recordingWriter struct {
	calls []string
	err   error
}

func (w *recordingWriter) UpdateStatus(ctx context.Context, jobID, brandID string, st job.Status) error {
	w.calls = append(w.calls, jobID+"/"+brandID+"="+string(st))
	return w.err
}

func TestStatusChainWritesLocalThenRemote(t *testing.T) {
	ctx := context.Background()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "c.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()
	if err := st.PutJob(ctx, sampleJob()); err != nil {
		t.Fatalf("PutJob: %v", err)
	}

	remote := &recordingWriter{}
	chain := StatusChain{Local: st, Remote: remote}
	if err := chain.UpdateStatus(ctx, "job-1", "a", job.StatusScheduled); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if len(remote.calls) != 1 || remote.calls[0] != "job-1/a=scheduled" {
		t.Fatalf("remote calls = %v", remote.calls)
	}

	// Local rejection must not reach the remote.
	if err := chain.UpdateStatus(ctx, "job-1", "b", job.StatusScheduled); !errors.Is(err, job.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	if len(remote.calls) != 1 {
		t.Fatalf("remote called after local failure: %v", remote.calls)
	}

	remote.err = errors.New("503")
	if err := (StatusChain{Remote: remote}).UpdateStatus(ctx, "j", "x", job.StatusScheduled); err == nil {
		t.Fatalf("expected remote error")
	}
}
