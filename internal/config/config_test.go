package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
logging:
  level: debug
  console: true
brands:
  - id: alpha
    offset_hours: 0
    posts_per_day: 3
  - id: beta
    name: Beta Co
    offset_hours: 2
auto_schedule:
  enabled: true
  every: "10m"
  base_hours: [0, 12]
  timezone: UTC
publisher:
  submit_url: http://127.0.0.1:9/schedule
render:
  driver: dir
  dir: ./renders
storage:
  driver: file
  path: ./data/brandops.db
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	p := writeFile(t, t.TempDir(), "brandops.yaml", sampleYAML)
	cfg, err := NewManager(p).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Brands) != 2 || cfg.Brands[1].Name != "Beta Co" || cfg.Brands[0].PostsPerDay != 3 {
		t.Fatalf("brands = %+v", cfg.Brands)
	}
	if cfg.AutoSchedule.Every != "10m" || len(cfg.AutoSchedule.BaseHours) != 2 {
		t.Fatalf("auto_schedule = %+v", cfg.AutoSchedule)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "file" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
}

func TestDecodeStrict(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name, path, body string
	}{
		{name: "unknown yaml key", path: "c.yaml", body: "brands: []\nbogus: 1\n"},
		{name: "unknown nested key", path: "c.yml", body: "auto_schedule:\n  evry: 5m\n"},
		{name: "unknown json key", path: "c.json", body: `{"brandz": []}`},
		{name: "trailing json", path: "c.json", body: `{"brands": []} {"brands": []}`},
		{name: "bad yaml", path: "c.yaml", body: "brands: [\n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Decode(tt.path, []byte(tt.body)); err == nil {
				t.Fatalf("Decode(%s) expected error", tt.name)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	base := func() *Config {
		cfg, err := Decode("c.yaml", []byte(sampleYAML))
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		return cfg
	}
	if err := Validate(base()); err != nil {
		t.Fatalf("sample config invalid: %v", err)
	}

	off := false
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"duplicate brand", func(c *Config) { c.Brands[1].ID = "alpha" }, "duplicate"},
		{"offset range", func(c *Config) { c.Brands[0].OffsetHours = 24 }, "offset_hours"},
		{"posts per day", func(c *Config) { c.Brands[0].PostsPerDay = 5 }, "posts_per_day"},
		{"base hour", func(c *Config) { c.AutoSchedule.BaseHours = []int{0, 24} }, "base_hours"},
		{"every", func(c *Config) { c.AutoSchedule.Every = "sometimes" }, "auto_schedule.every"},
		{"timezone", func(c *Config) { c.AutoSchedule.Timezone = "Mars/Olympus" }, "timezone"},
		{"submit url", func(c *Config) { c.Publisher.SubmitURL = "" }, "submit_url"},
		{"render driver", func(c *Config) { c.Render.Driver = "gpu" }, "render.driver"},
		{"render url", func(c *Config) { c.Render = RenderConfig{Driver: "http"} }, "render.url"},
		{"storage driver", func(c *Config) { c.Storage.Driver = "redis" }, "storage.driver"},
		{"engine off", func(c *Config) { c.TaskEngine = &TaskEngineConfig{Enabled: &off} }, "task_engine.enabled"},
		{"notifier chat", func(c *Config) { c.Notifier = &NotifierConfig{Enabled: true, Token: "x"} }, "chat_id"},
		{"duration", func(c *Config) { c.AutoSchedule.SubmitTimeout = "soon" }, "submit_timeout"},
		{"debug addr", func(c *Config) { c.Debug = &DebugConfig{Enabled: true, Addr: "6060"} }, "debug.addr"},
		{"debug public", func(c *Config) { c.Debug = &DebugConfig{Enabled: true, Addr: ":6060"} }, "non-loopback"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestSummarizeChangeHidesTokens(t *testing.T) {
	t.Parallel()
	oldCfg, _ := Decode("c.yaml", []byte(sampleYAML))
	newCfg, _ := Decode("c.yaml", []byte(sampleYAML))
	newCfg.Publisher.Token = "secret-token"
	newCfg.Brands = append(newCfg.Brands, newCfg.Brands[0])
	newCfg.Brands[2].ID = "gamma"

	sections, attrs := SummarizeChange(oldCfg, newCfg)
	if strings.Join(sections, ",") != "brands,publisher" {
		t.Fatalf("sections = %v", sections)
	}
	if len(attrs) == 0 {
		t.Fatalf("expected attrs")
	}

	if s, _ := SummarizeChange(oldCfg, oldCfg); len(s) != 0 {
		t.Fatalf("identical configs reported changes: %v", s)
	}
}

func TestWatchPublishesValidReloads(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := writeFile(t, dir, "brandops.yaml", sampleYAML)
	m := NewManager(p)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	sub := m.Subscribe(4)
	defer m.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Watch(ctx) }()
	// Give the watcher a moment to register the directory.
	time.Sleep(200 * time.Millisecond)

	// Invalid edit: rejected, current config kept.
	writeFile(t, dir, "brandops.yaml", strings.Replace(sampleYAML, "offset_hours: 2", "offset_hours: 99", 1))
	select {
	case cfg := <-sub:
		t.Fatalf("invalid config published: %+v", cfg.Brands)
	case <-time.After(800 * time.Millisecond):
	}

	writeFile(t, dir, "brandops.yaml", strings.Replace(sampleYAML, "offset_hours: 2", "offset_hours: 5", 1))
	select {
	case cfg := <-sub:
		if cfg.Brands[1].OffsetHours != 5 {
			t.Fatalf("offset = %d, want 5", cfg.Brands[1].OffsetHours)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("reload not published")
	}
	if m.Get().Brands[1].OffsetHours != 5 {
		t.Fatalf("Get() not updated")
	}
}
