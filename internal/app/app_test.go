package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"brandops/internal/config"
	"brandops/internal/job"
)

type platform struct {
	mu     sync.Mutex
	brands []string
}

func (p *platform) handler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Brand string `json:"brand"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p.mu.Lock()
	p.brands = append(p.brands, body.Brand)
	p.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

type fixture struct {
	dir     string
	cfgPath string
	pub     *platform
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	pub := &platform{}
	srv := httptest.NewServer(http.HandlerFunc(pub.handler))
	t.Cleanup(srv.Close)

	renders := filepath.Join(dir, "renders")
	if err := os.MkdirAll(renders, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	// Only alpha has a rendered artifact.
	if err := os.WriteFile(filepath.Join(renders, "alpha.png"), []byte("png-bytes"), 0o600); err != nil {
		t.Fatalf("write render: %v", err)
	}

	cfg := fmt.Sprintf(`
logging:
  level: error
brands:
  - id: alpha
    name: Alpha
    offset_hours: 1
  - id: beta
    name: Beta
    offset_hours: 1
    posts_per_day: 4
auto_schedule:
  enabled: false
  base_hours: [0, 12]
  timezone: UTC
publisher:
  submit_url: %s/schedule
render:
  driver: dir
  dir: %s
storage:
  driver: file
  path: %s
`, srv.URL, renders, filepath.Join(dir, "data", "jobs.json"))
	p := filepath.Join(dir, "brandops.yaml")
	if err := os.WriteFile(p, []byte(cfg), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &fixture{dir: dir, cfgPath: p, pub: pub}
}

func newApp(t *testing.T, f *fixture) *App {
	t.Helper()
	a, err := New(f.cfgPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Stop(ctx)
	})
	return a
}

func (f *fixture) writeJob(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(f.dir, "job.json")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write job: %v", err)
	}
	return p
}

const readyJob = `{
  "id": "job-1",
  "brand_ids": ["alpha", "beta"],
  "outputs": {
    "alpha": {"status": "COMPLETED", "title": "A", "caption": "a"},
    "beta":  {"status": "completed", "title": "B", "caption": "b"}
  }
}`

func TestRunOnceIsolatesBrandFailures(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	a := newApp(t, f)
	ctx := context.Background()

	ids, err := a.ImportJobs(ctx, f.writeJob(t, readyJob))
	if err != nil || len(ids) != 1 || ids[0] != "job-1" {
		t.Fatalf("ImportJobs = %v, %v", ids, err)
	}

	res, err := a.RunOnce(ctx, "job-1")
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if res.Scheduled != 1 || res.Failed != 1 {
		t.Fatalf("result = %d scheduled, %d failed; want 1, 1", res.Scheduled, res.Failed)
	}
	f.pub.mu.Lock()
	got := strings.Join(f.pub.brands, ",")
	f.pub.mu.Unlock()
	if got != "alpha" {
		t.Fatalf("platform received %q, want alpha only", got)
	}

	stored, err := a.store.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if st := stored.StatusOf("alpha"); st != job.StatusScheduled {
		t.Fatalf("alpha = %s, want scheduled", st)
	}
	if st := stored.StatusOf("beta"); st != job.StatusCompleted {
		t.Fatalf("beta = %s, want completed", st)
	}

	var buf bytes.Buffer
	if err := a.WriteJobs(ctx, &buf); err != nil {
		t.Fatalf("WriteJobs: %v", err)
	}
	if !strings.Contains(buf.String(), "alpha=scheduled beta=completed") {
		t.Fatalf("jobs table:\n%s", buf.String())
	}
}

func TestRunOnceRefusesUnfinishedJob(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	a := newApp(t, f)
	ctx := context.Background()

	body := strings.Replace(readyJob, `"status": "completed"`, `"status": "generating"`, 1)
	if _, err := a.ImportJobs(ctx, f.writeJob(t, body)); err != nil {
		t.Fatalf("ImportJobs: %v", err)
	}
	if _, err := a.RunOnce(ctx, "job-1"); err == nil {
		t.Fatalf("RunOnce on generating brand succeeded")
	}
	f.pub.mu.Lock()
	n := len(f.pub.brands)
	f.pub.mu.Unlock()
	if n != 0 {
		t.Fatalf("platform received %d submissions, want 0", n)
	}
}

func TestImportJobsValidates(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name, body, want string
	}{
		{"no brands", `{"id": "x"}`, "brand_ids"},
		{"missing output", `{"brand_ids": ["alpha"], "outputs": {}}`, "no output"},
		{"bad status", `{"brand_ids": ["alpha"], "outputs": {"alpha": {"status": "done"}}}`, "unknown status"},
		{"bad json", `[{`, "unexpected"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := decodeJobs([]byte(tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("decodeJobs = %v, want error containing %q", err, tt.want)
			}
		})
	}

	jobs, err := decodeJobs([]byte(`[{"brand_ids": ["alpha"], "outputs": {"alpha": {"status": "pending"}}}]`))
	if err != nil || len(jobs) != 1 || jobs[0].ID == "" || jobs[0].CreatedAt.IsZero() {
		t.Fatalf("decodeJobs = %+v, %v", jobs, err)
	}
}

func TestWriteSlots(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	a := newApp(t, f)

	var buf bytes.Buffer
	now := time.Date(2024, 3, 10, 14, 30, 0, 0, time.UTC)
	if err := a.WriteSlots(&buf, now); err != nil {
		t.Fatalf("WriteSlots: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"01:00 light, 13:00 dark",
		"01:00 light, 07:00 dark, 13:00 light, 19:00 dark",
		"2024-03-11 01:00 UTC",
		"warning: Alpha posts at the same offset (1h) as Beta",
		"warning: Beta posts at the same offset (1h) as Alpha",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("slot table missing %q:\n%s", want, out)
		}
	}
}

func TestStartAppliesReload(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	a := newApp(t, f)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	prev := a.cfgm.Get()
	b, err := os.ReadFile(f.cfgPath)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	next, err := config.Decode(f.cfgPath, bytes.Replace(b, []byte("offset_hours: 1\n    posts_per_day"), []byte("offset_hours: 6\n    posts_per_day"), 1))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	a.applyConfig(ctx, prev, next)

	beta, ok := a.brands.Get("beta")
	if !ok || beta.OffsetHours != 6 {
		t.Fatalf("beta = %+v, want offset 6", beta)
	}
	select {
	case <-a.Done():
		t.Fatalf("app stopped after reload: %v", a.Err())
	default:
	}
}

func TestStatusUpdaterSelection(t *testing.T) {
	t.Parallel()
	if su := statusUpdater(nil, nil, false); su != nil {
		t.Fatalf("statusUpdater(nil) = %T, want nil", su)
	}
}

func TestStatusReportsServices(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	a := newApp(t, f)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	st := a.Status()
	if st.Brands != 2 || !st.Storage || st.Sweep.Enabled {
		t.Fatalf("status = %+v", st)
	}
	want := []string{"config.reload", "config.watch", "eventbus.log"}
	deadline := time.Now().Add(2 * time.Second)
	for {
		names := map[string]bool{}
		for _, g := range a.Status().Supervisor.Goroutines {
			names[g.Name] = true
		}
		missing := ""
		for _, w := range want {
			if !names[w] {
				missing = w
				break
			}
		}
		if missing == "" {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("supervisor never reported %s", missing)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
