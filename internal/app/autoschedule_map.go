package app

import (
	"fmt"
	"strings"
	"time"

	"brandops/internal/autoschedule"
	"brandops/internal/config"
	"brandops/internal/publish"
	"brandops/internal/render"
	"brandops/internal/task/scheduler"
)

const defaultRenderDir = "./renders"

func mapAutoScheduleConfig(cfg *config.Config) (autoschedule.Config, error) {
	a := cfg.AutoSchedule
	submit, err := config.ParseDurationOrDefault("auto_schedule.submit_timeout", a.SubmitTimeout, 30*time.Second)
	if err != nil {
		return autoschedule.Config{}, err
	}
	status, err := config.ParseDurationOrDefault("auto_schedule.status_timeout", a.StatusTimeout, 10*time.Second)
	if err != nil {
		return autoschedule.Config{}, err
	}
	loc := time.Local
	if tz := strings.TrimSpace(a.Timezone); tz != "" {
		if loc, err = time.LoadLocation(tz); err != nil {
			return autoschedule.Config{}, fmt.Errorf("auto_schedule.timezone: %w", err)
		}
	}
	return autoschedule.Config{
		BaseHours:     append([]int(nil), a.BaseHours...),
		SubmitTimeout: submit,
		StatusTimeout: status,
		Location:      loc,
	}, nil
}

func mapSweepConfig(cfg *config.Config) (scheduler.Config, error) {
	a := cfg.AutoSchedule
	batch, err := config.ParseDurationField("auto_schedule.batch_timeout", a.BatchTimeout)
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{
		Enabled:      a.Enabled,
		Every:        a.Every,
		Timezone:     a.Timezone,
		BatchTimeout: batch,
	}, nil
}

func mapPublisherConfig(cfg *config.Config) (publish.Config, error) {
	p := cfg.Publisher
	timeout, err := config.ParseDurationOrDefault("publisher.timeout", p.Timeout, 30*time.Second)
	if err != nil {
		return publish.Config{}, err
	}
	return publish.Config{
		SubmitURL:  strings.TrimSpace(p.SubmitURL),
		StatusURL:  strings.TrimSpace(p.StatusURL),
		Token:      p.Token,
		Timeout:    timeout,
		RatePerSec: p.RatePerSec,
	}, nil
}

// mapRenderer builds the artifact source. The default is a directory of
// pre-rendered files under ./renders.
func mapRenderer(cfg *config.Config) (autoschedule.Renderer, string, error) {
	r := cfg.Render
	switch strings.ToLower(strings.TrimSpace(r.Driver)) {
	case "", "dir":
		dir := strings.TrimSpace(r.Dir)
		if dir == "" {
			dir = defaultRenderDir
		}
		return render.NewDirCache(dir, r.MaxBytes), "dir", nil
	case "http":
		timeout, err := config.ParseDurationOrDefault("render.timeout", r.Timeout, 60*time.Second)
		if err != nil {
			return nil, "", err
		}
		return render.NewHTTPRenderer(strings.TrimSpace(r.URL), r.Token, timeout), "http", nil
	default:
		return nil, "", fmt.Errorf("unknown render.driver: %s", r.Driver)
	}
}
