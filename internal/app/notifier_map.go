package app

import (
	"brandops/internal/config"
	"brandops/internal/notifier"
)

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	if cfg == nil || cfg.Notifier == nil {
		return notifier.Config{}, nil
	}
	n := cfg.Notifier
	dedup, err := config.ParseDurationField("notifier.dedup_window", n.DedupWindow)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		Enabled:      n.Enabled,
		Token:        n.Token,
		ChatID:       n.ChatID,
		ThreadID:     n.ThreadID,
		OnlyFailures: n.OnlyFailures,
		DedupWindow:  dedup,
		RetryMax:     n.RetryMax,
	}, nil
}
