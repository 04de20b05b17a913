package config

import (
	"errors"
	"fmt"
	"strings"
	"net"
	"time"

	"brandops/internal/brand"
	"brandops/internal/observability/debugsrv"
	"brandops/internal/task/scheduler"
)

// Validate rejects configs that would fail at runtime. It is pure: nothing
// is opened or dialed.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if err := brand.ValidateAll(cfg.Brands); err != nil {
		return fmt.Errorf("brands: %w", err)
	}
	if err := validateAutoSchedule(cfg.AutoSchedule); err != nil {
		return err
	}
	if err := validatePublisher(cfg.Publisher, cfg.AutoSchedule.Enabled); err != nil {
		return err
	}
	if err := validateRender(cfg.Render); err != nil {
		return err
	}
	if err := validateTaskEngine(cfg.TaskEngine, cfg.AutoSchedule.Enabled); err != nil {
		return err
	}
	if err := validateStorage(cfg.Storage); err != nil {
		return err
	}
	if err := validateNotifier(cfg.Notifier); err != nil {
		return err
	}
	return validateDebug(cfg.Debug)
}

func validateAutoSchedule(a AutoScheduleConfig) error {
	for _, h := range a.BaseHours {
		if h < 0 || h > 23 {
			return fmt.Errorf("auto_schedule.base_hours: %d out of range [0,23]", h)
		}
	}
	if strings.TrimSpace(a.Every) != "" {
		if _, err := scheduler.ParseSchedule(a.Every); err != nil {
			return fmt.Errorf("auto_schedule.every: %w", err)
		}
	}
	for key, raw := range map[string]string{
		"auto_schedule.submit_timeout": a.SubmitTimeout,
		"auto_schedule.status_timeout": a.StatusTimeout,
		"auto_schedule.batch_timeout":  a.BatchTimeout,
	} {
		if _, err := ParseDurationField(key, raw); err != nil {
			return err
		}
	}
	if tz := strings.TrimSpace(a.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("auto_schedule.timezone: invalid %q: %w", tz, err)
		}
	}
	return nil
}

func validatePublisher(p PublisherConfig, required bool) error {
	if required && strings.TrimSpace(p.SubmitURL) == "" {
		return errors.New("publisher.submit_url is required when auto_schedule.enabled is true")
	}
	if p.RatePerSec < 0 {
		return errors.New("publisher.rate_per_sec must be >= 0")
	}
	_, err := ParseDurationField("publisher.timeout", p.Timeout)
	return err
}

func validateRender(r RenderConfig) error {
	switch strings.ToLower(strings.TrimSpace(r.Driver)) {
	case "", "dir":
	case "http":
		if strings.TrimSpace(r.URL) == "" {
			return errors.New("render.url is required when render.driver=http")
		}
	default:
		return fmt.Errorf("unknown render.driver: %s", r.Driver)
	}
	if r.MaxBytes < 0 {
		return errors.New("render.max_bytes must be >= 0")
	}
	_, err := ParseDurationField("render.timeout", r.Timeout)
	return err
}

func validateTaskEngine(te *TaskEngineConfig, autoEnabled bool) error {
	if te == nil {
		return nil
	}
	switch {
	case te.Workers < 0:
		return errors.New("task_engine.workers must be >= 0")
	case te.QueueSize < 0:
		return errors.New("task_engine.queue_size must be >= 0")
	case te.HistorySize < 0:
		return errors.New("task_engine.history_size must be >= 0")
	case te.RetryMax < 0:
		return errors.New("task_engine.retry_max must be >= 0")
	}
	if autoEnabled && te.Enabled != nil && !*te.Enabled {
		return errors.New("task_engine.enabled cannot be false while auto_schedule.enabled is true")
	}
	_, err := ParseDurationField("task_engine.default_timeout", te.DefaultTimeout)
	return err
}

func validateStorage(sc *StorageConfig) error {
	if sc == nil {
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(sc.Driver)) {
	case "", "none":
		return nil
	case "file", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
	if strings.TrimSpace(sc.Path) == "" {
		return fmt.Errorf("storage.path is required when storage.driver=%s", sc.Driver)
	}
	_, err := ParseDurationField("storage.busy_timeout", sc.BusyTimeout)
	return err
}

func validateNotifier(n *NotifierConfig) error {
	if n == nil || !n.Enabled {
		return nil
	}
	if strings.TrimSpace(n.Token) == "" {
		return errors.New("notifier.token is required when notifier.enabled is true")
	}
	if n.ChatID == 0 {
		return errors.New("notifier.chat_id is required when notifier.enabled is true")
	}
	if n.RetryMax < 0 {
		return errors.New("notifier.retry_max must be >= 0")
	}
	_, err := ParseDurationField("notifier.dedup_window", n.DedupWindow)
	return err
}

func validateDebug(d *DebugConfig) error {
	if d == nil {
		return nil
	}
	for key, raw := range map[string]string{
		"debug.read_timeout": d.ReadTimeout,
		"debug.idle_timeout": d.IdleTimeout,
	} {
		if _, err := ParseDurationField(key, raw); err != nil {
			return err
		}
	}
	if !d.Enabled || strings.TrimSpace(d.Addr) == "" {
		return nil
	}
	addr := strings.TrimSpace(d.Addr)
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("debug.addr: invalid %q (expected host:port): %w", addr, err)
	}
	if !d.AllowInsecure && strings.TrimSpace(d.Token) == "" && !debugsrv.IsLoopbackAddr(addr) {
		return errors.New("debug: binding to a non-loopback addr requires token or allow_insecure")
	}
	return nil
}
