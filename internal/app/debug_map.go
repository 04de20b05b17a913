package app

import (
	"strings"
	"time"

	"brandops/internal/config"
	"brandops/internal/observability/debugsrv"
)

func mapDebugConfig(cfg *config.Config) (debugsrv.Config, error) {
	if cfg == nil || cfg.Debug == nil {
		return debugsrv.Config{}, nil
	}
	d := cfg.Debug
	read, err := config.ParseDurationOrDefault("debug.read_timeout", d.ReadTimeout, 5*time.Second)
	if err != nil {
		return debugsrv.Config{}, err
	}
	idle, err := config.ParseDurationOrDefault("debug.idle_timeout", d.IdleTimeout, 120*time.Second)
	if err != nil {
		return debugsrv.Config{}, err
	}
	return debugsrv.Config{
		Enabled:       d.Enabled,
		Addr:          strings.TrimSpace(d.Addr),
		Token:         strings.TrimSpace(d.Token),
		AllowInsecure: d.AllowInsecure,
		ReadTimeout:   read,
		IdleTimeout:   idle,
	}, nil
}
