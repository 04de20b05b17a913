package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"brandops/internal/autoschedule"
	"brandops/internal/brand"
	"brandops/internal/config"
	"brandops/internal/eventbus"
	"brandops/internal/notifier"
	"brandops/internal/observability/debugsrv"
	"brandops/internal/publish"
	"brandops/internal/runtime/supervisor"
	"brandops/internal/schedule"
	"brandops/internal/storage"
	"brandops/internal/task/engine"
	"brandops/internal/task/scheduler"
	logx "brandops/pkg/logx"
)

var ErrNoStorage = errors.New("storage is disabled; auto-scheduling needs a job store")

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	brands *brand.Registry
	runner *autoschedule.Scheduler
	engine *engine.Service
	sched  *scheduler.Service
	notif  *notifier.Service
	debug  *debugsrv.Service
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logs, log := logx.New(mapLoggingConfig(cfg))
	log = log.With(logx.String("comp", "app"))
	bus := eventbus.New()

	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	}
	if store == nil && cfg.AutoSchedule.Enabled {
		return nil, ErrNoStorage
	}
	closeStore := func() {
		if store != nil {
			_ = store.Close()
		}
	}

	brands := brand.NewRegistry(cfg.Brands)
	warnConflicts(log, brands.All())

	pubCfg, err := mapPublisherConfig(cfg)
	if err != nil {
		closeStore()
		return nil, err
	}
	pub := publish.NewClient(pubCfg, log.With(logx.String("comp", "publish")))

	renderer, driver, err := mapRenderer(cfg)
	if err != nil {
		closeStore()
		return nil, err
	}
	log.Debug("renderer ready", logx.String("driver", driver))

	asCfg, err := mapAutoScheduleConfig(cfg)
	if err != nil {
		closeStore()
		return nil, err
	}
	status := statusUpdater(store, pub, pubCfg.StatusURL != "")
	if status == nil {
		log.Warn("no status store or status_url; scheduled brands will be reported as not recorded")
	}
	runner := autoschedule.New(asCfg, brands, renderer, pub,
		log.With(logx.String("comp", "autoschedule")),
		autoschedule.WithBus(bus),
		autoschedule.WithStatusUpdater(status),
	)

	engCfg, err := mapTaskEngineConfig(cfg)
	if err != nil {
		closeStore()
		return nil, err
	}
	engineSvc := engine.New(engCfg, log.With(logx.String("comp", "taskengine")), bus)

	sweepCfg, err := mapSweepConfig(cfg)
	if err != nil {
		closeStore()
		return nil, err
	}
	var jobs scheduler.Jobs
	if store != nil {
		jobs = store
	}
	schedSvc := scheduler.New(sweepCfg, engineSvc, jobs, runner, log.With(logx.String("comp", "scheduler")), bus)

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		closeStore()
		return nil, err
	}
	var sender notifier.Sender
	if strings.TrimSpace(ncfg.Token) != "" {
		ts, err := notifier.NewTelegramSender(ncfg.Token, 10*time.Second)
		if err != nil {
			closeStore()
			return nil, fmt.Errorf("notifier: %w", err)
		}
		sender = ts
	}
	notifSvc := notifier.New(ncfg, sender, log.With(logx.String("comp", "notifier")), bus)

	dcfg, err := mapDebugConfig(cfg)
	if err != nil {
		closeStore()
		return nil, err
	}

	a := &App{
		cfgm:   cfgm,
		log:    log,
		logs:   logs,
		bus:    bus,
		store:  store,
		brands: brands,
		runner: runner,
		engine: engineSvc,
		sched:  schedSvc,
		notif:  notifSvc,
	}
	a.debug = debugsrv.New(dcfg, func() any { return a.Status() }, log.With(logx.String("comp", "debug")))
	return a, nil
}

// statusUpdater picks where COMPLETED -> SCHEDULED is recorded: the local
// store, the remote status endpoint, or both (local first).
func statusUpdater(store storage.Store, remote storage.StatusWriter, remoteEnabled bool) autoschedule.StatusUpdater {
	switch {
	case store != nil && remoteEnabled:
		return storage.StatusChain{Local: store, Remote: remote}
	case store != nil:
		return store
	case remoteEnabled:
		return remote
	default:
		return nil
	}
}

func warnConflicts(log logx.Logger, brands []brand.Brand) {
	for _, c := range schedule.Conflicts(brands) {
		log.Warn("brands share a posting offset",
			logx.String("brand", c.BrandID),
			logx.String("other", c.OtherID),
			logx.Int("offset_hours", c.OffsetHours),
		)
	}
}

// Done is closed when the app context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	runCtx := a.sup.Context()
	a.engine.Start(runCtx)
	if err := a.sched.Start(runCtx); err != nil {
		return err
	}
	if err := a.notif.Start(runCtx); err != nil {
		return err
	}

	a.debug.Start(runCtx)

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case next, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts; only the newest config matters.
				for drained := false; !drained; {
					select {
					case newer := <-sub:
						if newer != nil {
							next = newer
						}
					default:
						drained = true
					}
				}
				a.applyConfig(c, last, next)
				last = next
			}
		}
	})

	a.sup.GoRestart("config.watch", a.cfgm.Watch, time.Second, 30*time.Second)

	a.log.Info("app started",
		logx.Int("brands", a.brands.Len()),
		logx.Bool("auto_schedule", a.sched.Enabled()),
		logx.Bool("notifier", a.notif.Enabled()),
	)
	return nil
}

// applyConfig pushes a validated reload into the running services.
// Storage, publisher and render changes need a restart.
func (a *App) applyConfig(ctx context.Context, prev, next *config.Config) {
	sections, attrs := config.SummarizeChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	changed := map[string]bool{}
	for _, s := range sections {
		changed[s] = true
	}

	if changed["logging"] {
		a.logs.Apply(mapLoggingConfig(next))
	}
	for _, s := range []string{"storage", "publisher", "render"} {
		if changed[s] {
			a.log.Warn("config section changed; restart required for changes to take effect", logx.String("section", s))
		}
	}

	if changed["brands"] {
		a.brands.Replace(next.Brands)
		warnConflicts(a.log, a.brands.All())
	}

	if changed["auto_schedule"] {
		if asCfg, err := mapAutoScheduleConfig(next); err != nil {
			a.log.Warn("invalid auto_schedule config; keeping previous", logx.Err(err))
		} else {
			a.runner.Apply(asCfg)
		}
	}

	// Engine before sweep on enable, sweep before engine on disable.
	prevEngine := a.engine.Enabled()
	if engCfg, err := mapTaskEngineConfig(next); err != nil {
		a.log.Warn("invalid task_engine config; keeping previous", logx.Err(err))
	} else {
		a.engine.Apply(ctx, engCfg)
		if !prevEngine && engCfg.Enabled {
			a.log.Info("task engine enabled via config")
			a.engine.Start(ctx)
		}
	}
	if sweepCfg, err := mapSweepConfig(next); err != nil {
		a.log.Warn("invalid auto_schedule config; keeping previous sweep", logx.Err(err))
	} else {
		if a.store == nil && sweepCfg.Enabled {
			a.log.Warn("auto_schedule enabled but storage is disabled; restart with storage configured")
		}
		a.sched.Apply(sweepCfg)
	}

	if changed["notifier"] {
		prevNotif := a.notif.Enabled()
		if ncfg, err := mapNotifierConfig(next); err != nil {
			a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
		} else {
			a.notif.Apply(ncfg)
			switch {
			case prevNotif && !ncfg.Enabled:
				a.log.Info("notifier disabled via config")
				stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				a.notif.Stop(stopCtx)
				cancel()
			case !prevNotif && ncfg.Enabled:
				a.log.Info("notifier enabled via config")
				if err := a.notif.Start(ctx); err != nil {
					a.log.Warn("notifier start failed; token changes need a restart", logx.Err(err))
				}
			}
		}
	}

	if changed["debug"] {
		if dcfg, err := mapDebugConfig(next); err != nil {
			a.log.Warn("invalid debug config; keeping previous", logx.Err(err))
		} else {
			a.debug.Reconfigure(ctx, dcfg)
		}
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

// Stop shuts services down in dependency order, each step bounded so one
// component can't stall the rest.
func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		err := a.closeStorage()
		if a.logs != nil {
			_ = a.logs.Close()
		}
		return err
	}
	a.log.Info("stopping")
	a.sup.Cancel()

	a.stopStep(ctx, "scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	a.stopStep(ctx, "taskengine", 5*time.Second, func(c context.Context) error { a.engine.Stop(c); return nil })
	a.stopStep(ctx, "notifier", 2*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	a.stopStep(ctx, "debug", 2*time.Second, func(c context.Context) error { a.debug.Stop(c); return nil })
	a.stopStep(ctx, "supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	a.stopStep(ctx, "storage", time.Second, func(context.Context) error { return a.closeStorage() })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

func (a *App) closeStorage() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

func (a *App) stopStep(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem < max {
			max = rem
		}
	}
	if max <= 0 {
		a.log.Warn("stop step skipped; deadline reached", logx.String("name", name))
		return
	}
	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
	}
}
