package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"brandops/internal/app"
)

func main() {
	var (
		cfgPath    string
		slots      bool
		listJobs   bool
		runJob     string
		importPath string
	)
	flag.StringVar(&cfgPath, "config", "./brandops.yaml", "path to config (yaml or json)")
	flag.BoolVar(&slots, "slots", false, "print each brand's slot table and exit")
	flag.BoolVar(&listJobs, "jobs", false, "list stored jobs and exit")
	flag.StringVar(&runJob, "run", "", "run one auto-schedule batch for the job id and exit")
	flag.StringVar(&importPath, "import", "", "store jobs from a json file and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}

	if slots || listJobs || runJob != "" || importPath != "" {
		code := oneShot(ctx, a, slots, listJobs, runJob, importPath)
		_ = a.Stop(context.Background())
		os.Exit(code)
	}

	if err := a.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal start:", err)
		_ = a.Stop(context.Background())
		os.Exit(1)
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	go watchdog(ctx)

	select {
	case <-ctx.Done():
	case <-a.Done():
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer stopCancel()
	_ = a.Stop(stopCtx)
	if err := a.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func oneShot(ctx context.Context, a *app.App, slots, listJobs bool, runJob, importPath string) int {
	if importPath != "" {
		ids, err := a.ImportJobs(ctx, importPath)
		for _, id := range ids {
			fmt.Println("imported", id)
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "import:", err)
			return 1
		}
	}
	if slots {
		if err := a.WriteSlots(os.Stdout, time.Now()); err != nil {
			fmt.Fprintln(os.Stderr, "slots:", err)
			return 1
		}
	}
	if listJobs {
		if err := a.WriteJobs(ctx, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, "jobs:", err)
			return 1
		}
	}
	if runJob != "" {
		res, err := a.RunOnce(ctx, runJob)
		if err != nil {
			fmt.Fprintln(os.Stderr, "run:", err)
			return 1
		}
		fmt.Println(res.Summary())
		for _, o := range res.Outcomes {
			switch {
			case o.AlreadyScheduled():
				fmt.Printf("  %s: already scheduled earlier, not resubmitted\n", o.BrandID)
			case o.Degraded():
				fmt.Printf("  %s: scheduled %s (status not recorded: %v)\n", o.BrandID, o.ScheduleAt.Format(time.RFC3339), o.PersistErr)
			case o.Scheduled():
				fmt.Printf("  %s: scheduled %s\n", o.BrandID, o.ScheduleAt.Format(time.RFC3339))
			default:
				fmt.Printf("  %s: failed at %s: %v\n", o.BrandID, o.Stage, o.Err)
			}
		}
		if res.Failed > 0 {
			return 2
		}
	}
	return 0
}

// watchdog pings systemd at half the configured interval when WatchdogSec is set.
func watchdog(ctx context.Context) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}
	t := time.NewTicker(interval / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		}
	}
}
