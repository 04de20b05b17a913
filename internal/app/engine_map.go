package app

import (
	"errors"

	"brandops/internal/config"
	"brandops/internal/task/engine"
)

// mapTaskEngineConfig follows auto_schedule.enabled unless task_engine.enabled
// says otherwise.
func mapTaskEngineConfig(cfg *config.Config) (engine.Config, error) {
	if cfg == nil {
		return engine.Config{}, nil
	}
	out := engine.Config{
		Enabled:     cfg.AutoSchedule.Enabled,
		Workers:     2,
		QueueSize:   64,
		HistorySize: 200,
		RetryMax:    2,
	}
	te := cfg.TaskEngine
	if te == nil {
		return out, nil
	}
	if te.Enabled != nil {
		if cfg.AutoSchedule.Enabled && !*te.Enabled {
			return engine.Config{}, errors.New("task_engine.enabled cannot be false while auto_schedule.enabled is true")
		}
		out.Enabled = *te.Enabled
	}
	if te.Workers > 0 {
		out.Workers = te.Workers
	}
	if te.QueueSize > 0 {
		out.QueueSize = te.QueueSize
	}
	if te.HistorySize > 0 {
		out.HistorySize = te.HistorySize
	}
	if te.RetryMax > 0 {
		out.RetryMax = te.RetryMax
	}
	d, err := config.ParseDurationField("task_engine.default_timeout", te.DefaultTimeout)
	if err != nil {
		return engine.Config{}, err
	}
	out.DefaultTimeout = d
	return out, nil
}
