package config

import (
	"reflect"
	"strings"

	logx "brandops/pkg/logx"
)

// SummarizeChange lists the sections that differ between two configs plus
// log-safe attributes describing the new values. Tokens are never included,
// only whether one is set.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var (
		changed []string
		attrs   []logx.Field
	)

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
		)
	}

	if !reflect.DeepEqual(oldCfg.Brands, newCfg.Brands) {
		changed = append(changed, "brands")
		ids := make([]string, 0, len(newCfg.Brands))
		for _, b := range newCfg.Brands {
			ids = append(ids, b.ID)
		}
		attrs = append(attrs, logx.Int("brands.count", len(ids)), logx.Strings("brands.ids", ids))
	}

	if !reflect.DeepEqual(oldCfg.AutoSchedule, newCfg.AutoSchedule) {
		changed = append(changed, "auto_schedule")
		a := newCfg.AutoSchedule
		attrs = append(attrs,
			logx.Bool("auto_schedule.enabled", a.Enabled),
			logx.String("auto_schedule.every", strings.TrimSpace(a.Every)),
			logx.Any("auto_schedule.base_hours", a.BaseHours),
			logx.String("auto_schedule.timezone", strings.TrimSpace(a.Timezone)),
		)
	}

	op, np := oldCfg.Publisher, newCfg.Publisher
	if op.SubmitURL != np.SubmitURL || op.StatusURL != np.StatusURL || op.Timeout != np.Timeout ||
		op.RatePerSec != np.RatePerSec || (op.Token != "") != (np.Token != "") {
		changed = append(changed, "publisher")
		attrs = append(attrs,
			logx.String("publisher.submit_url", np.SubmitURL),
			logx.Bool("publisher.status_url_set", np.StatusURL != ""),
			logx.Bool("publisher.token_set", np.Token != ""),
			logx.Int("publisher.rate_per_sec", np.RatePerSec),
		)
	} else if op.Token != np.Token {
		changed = append(changed, "publisher")
		attrs = append(attrs, logx.Bool("publisher.token_rotated", true))
	}

	or, nr := oldCfg.Render, newCfg.Render
	if or.Driver != nr.Driver || or.Dir != nr.Dir || or.URL != nr.URL || or.Timeout != nr.Timeout ||
		or.MaxBytes != nr.MaxBytes || or.Token != nr.Token {
		changed = append(changed, "render")
		attrs = append(attrs, logx.String("render.driver", nr.Driver))
	}

	if !reflect.DeepEqual(oldCfg.TaskEngine, newCfg.TaskEngine) {
		changed = append(changed, "task_engine")
		if te := newCfg.TaskEngine; te != nil {
			attrs = append(attrs,
				logx.Int("task_engine.workers", te.Workers),
				logx.Int("task_engine.queue_size", te.QueueSize),
				logx.Int("task_engine.retry_max", te.RetryMax),
			)
		}
	}

	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
	}

	on, nn := derefNotifier(oldCfg.Notifier), derefNotifier(newCfg.Notifier)
	if on != nn {
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.Bool("notifier.enabled", nn.Enabled),
			logx.Int64("notifier.chat_id", nn.ChatID),
			logx.Bool("notifier.only_failures", nn.OnlyFailures),
		)
	}

	od, nd := derefDebug(oldCfg.Debug), derefDebug(newCfg.Debug)
	if od != nd {
		changed = append(changed, "debug")
		attrs = append(attrs,
			logx.Bool("debug.enabled", nd.Enabled),
			logx.String("debug.addr", nd.Addr),
			logx.Bool("debug.token_set", nd.Token != ""),
		)
	}

	return changed, attrs
}

func derefNotifier(n *NotifierConfig) NotifierConfig {
	if n == nil {
		return NotifierConfig{}
	}
	return *n
}

func derefDebug(d *DebugConfig) DebugConfig {
	if d == nil {
		return DebugConfig{}
	}
	return *d
}
