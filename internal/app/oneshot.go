package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"brandops/internal/autoschedule"
	"brandops/internal/job"
	"brandops/internal/schedule"
	logx "brandops/pkg/logx"
)

// RunOnce runs one auto-schedule batch for jobID and waits for the result.
// Outside Start it brings the task engine up for the duration of the call.
func (a *App) RunOnce(ctx context.Context, jobID string) (autoschedule.Result, error) {
	if a.store == nil {
		return autoschedule.Result{}, ErrNoStorage
	}
	if a.sup == nil {
		engCfg, err := mapTaskEngineConfig(a.cfgm.Get())
		if err != nil {
			return autoschedule.Result{}, err
		}
		engCfg.Enabled = true
		a.engine.Apply(ctx, engCfg)
		a.engine.Start(ctx)
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			a.engine.Stop(stopCtx)
		}()
	}
	return a.sched.RunNow(ctx, jobID)
}

// ImportJobs stores the jobs in a JSON file holding one job or an array of
// jobs. Missing IDs get a fresh one; every listed brand needs an output.
func (a *App) ImportJobs(ctx context.Context, path string) ([]string, error) {
	if a.store == nil {
		return nil, ErrNoStorage
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	jobs, err := decodeJobs(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	ids := make([]string, 0, len(jobs))
	for _, j := range jobs {
		if err := a.store.PutJob(ctx, j); err != nil {
			return ids, fmt.Errorf("job %s: %w", j.ID, err)
		}
		ids = append(ids, j.ID)
		a.log.Info("job imported", logx.String("job", j.ID), logx.Int("brands", len(j.BrandIDs)))
	}
	return ids, nil
}

func decodeJobs(b []byte) ([]*job.Job, error) {
	b = bytes.TrimSpace(b)
	var jobs []*job.Job
	if len(b) > 0 && b[0] == '[' {
		if err := json.Unmarshal(b, &jobs); err != nil {
			return nil, err
		}
	} else {
		var j job.Job
		if err := json.Unmarshal(b, &j); err != nil {
			return nil, err
		}
		jobs = append(jobs, &j)
	}
	now := time.Now()
	for i, j := range jobs {
		if j == nil || len(j.BrandIDs) == 0 {
			return nil, fmt.Errorf("job #%d: brand_ids is required", i)
		}
		if strings.TrimSpace(j.ID) == "" {
			j.ID = job.NewID()
		}
		if j.CreatedAt.IsZero() {
			j.CreatedAt = now
		}
		for _, id := range j.BrandIDs {
			out := j.Output(id)
			if out == nil {
				return nil, fmt.Errorf("job %s: no output for brand %q", j.ID, id)
			}
			st, err := job.ParseStatus(string(out.Status))
			if err != nil {
				return nil, fmt.Errorf("job %s brand %s: %w", j.ID, id, err)
			}
			out.Status = st
		}
	}
	return jobs, nil
}

// WriteJobs prints every stored job with its per-brand statuses.
func (a *App) WriteJobs(ctx context.Context, w io.Writer) error {
	if a.store == nil {
		return ErrNoStorage
	}
	list, err := a.store.ListJobs(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "JOB\tREADY\tBRANDS")
	for _, j := range list {
		parts := make([]string, 0, len(j.BrandIDs))
		for _, id := range j.BrandIDs {
			parts = append(parts, id+"="+string(j.StatusOf(id)))
		}
		fmt.Fprintf(tw, "%s\t%t\t%s\n", j.ID, j.ReadyForScheduling(), strings.Join(parts, " "))
	}
	return tw.Flush()
}

// WriteSlots prints each brand's daily slot table, its next auto-schedule
// time, and any offset shared with another brand.
func (a *App) WriteSlots(w io.Writer, now time.Time) error {
	asCfg, err := mapAutoScheduleConfig(a.cfgm.Get())
	if err != nil {
		return err
	}
	base := asCfg.BaseHours
	if len(base) == 0 {
		base = schedule.DefaultBaseHours
	}
	now = now.In(asCfg.Location)
	brands := a.brands.All()

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BRAND\tOFFSET\tPER DAY\tSLOTS\tNEXT")
	for _, b := range brands {
		slots := schedule.Generate(b.OffsetHours, b.PostsPerDay)
		cells := make([]string, len(slots))
		for i, s := range slots {
			cells[i] = fmt.Sprintf("%02d:00 %s", s.Hour, s.Variant)
		}
		next := schedule.NextSlot(now, b.OffsetHours, base)
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", b.ID, b.OffsetHours, b.PostsPerDay,
			strings.Join(cells, ", "), next.Format("2006-01-02 15:04 MST"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	var warnings []string
	for _, b := range brands {
		if other, ok := schedule.FindConflict(b.OffsetHours, b.ID, brands); ok {
			warnings = append(warnings, fmt.Sprintf("warning: %s posts at the same offset (%dh) as %s", b.DisplayName(), b.OffsetHours, other))
		}
	}
	sort.Strings(warnings)
	for _, line := range warnings {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
