package config

import "brandops/internal/brand"

type Config struct {
	Logging LoggingConfig `json:"logging"`

	// Brands is the ordered brand list; order is informational only, batches
	// follow each job's own brand order.
	Brands []brand.Brand `json:"brands"`

	AutoSchedule AutoScheduleConfig `json:"auto_schedule"`
	Publisher    PublisherConfig    `json:"publisher"`
	Render       RenderConfig       `json:"render"`

	TaskEngine *TaskEngineConfig `json:"task_engine,omitempty"`
	Storage    *StorageConfig    `json:"storage,omitempty"`
	Notifier   *NotifierConfig   `json:"notifier,omitempty"`
	Debug      *DebugConfig      `json:"debug,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// AutoScheduleConfig controls slot computation and the periodic sweep.
//
// Durations are Go duration strings. Defaults:
//   - every: "5m" (also accepts cron, e.g. "*/10 * * * *")
//   - base_hours: [0, 12]
//   - submit_timeout: "30s"
//   - status_timeout: "10s"
//   - timezone: local time
type AutoScheduleConfig struct {
	Enabled       bool   `json:"enabled"`
	Every         string `json:"every,omitempty"`
	BaseHours     []int  `json:"base_hours,omitempty"`
	SubmitTimeout string `json:"submit_timeout,omitempty"`
	StatusTimeout string `json:"status_timeout,omitempty"`
	BatchTimeout  string `json:"batch_timeout,omitempty"`
	Timezone      string `json:"timezone,omitempty"`
}

// PublisherConfig points at the remote scheduling endpoint.
//
// Example:
//
//	"publisher": { "submit_url": "https://pub.example/api/schedule", "token": "..." }
type PublisherConfig struct {
	SubmitURL  string `json:"submit_url"`
	StatusURL  string `json:"status_url,omitempty"`
	Token      string `json:"token,omitempty"` // never logged
	Timeout    string `json:"timeout,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// RenderConfig selects where artifacts come from: "dir" (pre-rendered files
// named <brand>.png) or "http" (a render service).
type RenderConfig struct {
	Driver   string `json:"driver"`
	Dir      string `json:"dir,omitempty"`
	URL      string `json:"url,omitempty"`
	Token    string `json:"token,omitempty"`
	Timeout  string `json:"timeout,omitempty"`
	MaxBytes int64  `json:"max_bytes,omitempty"`
}

// TaskEngineConfig controls batch execution.
//
// Enabled is a pointer so an omitted value can follow auto_schedule.enabled.
type TaskEngineConfig struct {
	Enabled        *bool  `json:"enabled,omitempty"`
	Workers        int    `json:"workers,omitempty"`
	QueueSize      int    `json:"queue_size,omitempty"`
	DefaultTimeout string `json:"default_timeout,omitempty"`
	HistorySize    int    `json:"history_size,omitempty"`
	RetryMax       int    `json:"retry_max,omitempty"`
}

// StorageConfig controls persistence.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/brandops.sqlite" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// NotifierConfig controls Telegram batch summaries.
type NotifierConfig struct {
	Enabled      bool   `json:"enabled"`
	Token        string `json:"token"`
	ChatID       int64  `json:"chat_id"`
	ThreadID     int    `json:"thread_id,omitempty"`
	OnlyFailures bool   `json:"only_failures,omitempty"`
	DedupWindow  string `json:"dedup_window,omitempty"`
	RetryMax     int    `json:"retry_max,omitempty"`
}

// DebugConfig controls the local /healthz, /status and pprof listener.
//
// Example:
//
//	"debug": { "enabled": true, "addr": "127.0.0.1:6060" }
type DebugConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`
	Token         string `json:"token,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	ReadTimeout   string `json:"read_timeout,omitempty"`
	IdleTimeout   string `json:"idle_timeout,omitempty"`
}
