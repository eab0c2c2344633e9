package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"jobtracker/internal/commands"
	"jobtracker/internal/config"
	"jobtracker/internal/eventbus"
	"jobtracker/internal/notifier"
	"jobtracker/internal/runtime/supervisor"
	"jobtracker/internal/source"
	"jobtracker/internal/storage"
	"jobtracker/internal/task/scheduler"
	"jobtracker/internal/tracker"
	kit "jobtracker/internal/transport"
	telegram "jobtracker/internal/transport/telegram/adapter"
	"jobtracker/internal/transport/telegram/router"
	logx "jobtracker/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store    *storage.Store
	fetcher  *swapFetcher
	notif    *notifier.Service
	pipeline *tracker.Pipeline
	sched    *scheduler.Service

	adapter *telegram.Adapter
	cmdm    *router.CommandManager
	cmds    *commands.Set

	updates chan kit.Update
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validateConfig(context.Background(), cfg); err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))
	adCfg, err := mapAdapterConfig(cfg)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(adCfg, bootLog)
	if err != nil {
		return nil, err
	}

	// logx.New applies immediately; enabling the Telegram sink before the
	// target is set would warn, so it is switched on in a second Apply.
	logCfg := mapLoggingConfig(cfg)
	bootCfg := logCfg
	bootCfg.Telegram.Enabled = false
	logSvc, log := logx.New(bootCfg, ad)
	log = log.With(logx.String("comp", "app"))
	if chatID, ok := logChat(cfg); ok {
		logSvc.SetTelegramTarget(chatID, cfg.Logging.Telegram.ThreadID)
	}
	logSvc.Apply(logCfg)

	bus := eventbus.New()

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	srcCfg, err := mapSourceConfig(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	src, err := source.New(srcCfg, log.With(logx.String("comp", "source")))
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	fetcher := newSwapFetcher(src)

	notif := notifier.New(mapNotifierConfig(cfg), ad, store, log.With(logx.String("comp", "notifier")), bus)

	// The scheduler's job and the pipeline's zone refer to each other.
	var pipeline *tracker.Pipeline
	schedLog := log.With(logx.String("comp", "scheduler"))
	sched := scheduler.New(mapSchedulerConfig(cfg), func(ctx context.Context) error {
		sum, err := pipeline.RunCycle(ctx, tracker.TriggerSchedule)
		if errors.Is(err, tracker.ErrCycleRunning) {
			schedLog.Debug("tick skipped; cycle already running")
			return nil
		}
		if err != nil {
			return err
		}
		return sum.Err
	}, schedLog, bus)
	pipeline = tracker.New(fetcher, store, notif, log.With(logx.String("comp", "tracker")), bus,
		tracker.WithLocation(sched.Location))

	a := &App{
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		bus:      bus,
		store:    store,
		fetcher:  fetcher,
		notif:    notif,
		pipeline: pipeline,
		sched:    sched,
		adapter:  ad,
		cmdm:     router.NewCommandManager(log.With(logx.String("comp", "commands")), ad, cfg.Telegram.OwnerUserIDs),
		updates:  make(chan kit.Update, 256),
	}
	a.cmds = commands.New(commands.Deps{
		Store:      store,
		Cycles:     pipeline,
		Schedule:   sched,
		Log:        log.With(logx.String("comp", "commands")),
		Bus:        bus,
		Goroutines: a.goroutines,
	})
	return a, nil
}

// goroutines sums the app supervisor and the command worker pool. Both are
// nil before Start, and Counters is nil-safe.
func (a *App) goroutines() supervisor.Counters {
	app := a.sup.Counters()
	workers := a.cmdm.Supervisor().Counters()
	return supervisor.Counters{
		Active:  app.Active + workers.Active,
		Started: app.Started + workers.Started,
	}
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(validateConfig)

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	a.cmdm.SetBotUsername(a.adapter.Username())
	a.cmdm.SetRegistry(a.sup.Context(), a.cmds.Commands())
	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.cmdm.DispatchLoop(c, a.updates)
	})

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

	if err := a.sched.Start(a.sup.Context()); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	if a.cfgm.Get().Scheduler.RunOnStart {
		a.sup.Go0("cycle.startup", func(c context.Context) {
			// Runs to completion like a scheduled cycle; Stop waits for it.
			if _, err := a.pipeline.RunCycle(context.WithoutCancel(c), tracker.TriggerStartup); err != nil {
				a.log.Debug("startup cycle not run", logx.Err(err))
			}
		})
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						break drain
					}
				}
				a.applyConfig(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started",
		logx.String("config", a.cfgm.Path()),
		logx.String("bot", a.adapter.Username()),
		logx.Bool("scheduler", a.sched.Enabled()),
		logx.Time("next_run", a.sched.Next()))
	return nil
}

// applyConfig fans a committed config out to the live components.
func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	if config.NeedsRestart(sections) {
		a.log.Warn("config change needs a restart to take effect", logx.String("changed", strings.Join(sections, ",")))
	}

	// Target first so Apply() doesn't warn when Telegram logging is enabled.
	if chatID, ok := logChat(newCfg); ok {
		a.logs.SetTelegramTarget(chatID, newCfg.Logging.Telegram.ThreadID)
	} else {
		a.logs.SetTelegramTarget(0, 0)
	}
	a.logs.Apply(mapLoggingConfig(newCfg))

	a.cmdm.SetOwners(newCfg.Telegram.OwnerUserIDs)
	a.notif.Apply(mapNotifierConfig(newCfg))

	if slices.Contains(sections, "scheduler") {
		if err := a.sched.Apply(mapSchedulerConfig(newCfg)); err != nil {
			a.log.Warn("invalid scheduler config; keeping previous", logx.Err(err))
		}
	}

	if slices.Contains(sections, "source") {
		sc, err := mapSourceConfig(newCfg)
		if err == nil {
			var f *source.Fetcher
			if f, err = source.New(sc, a.log.With(logx.String("comp", "source"))); err == nil {
				a.fetcher.Swap(f)
			}
		}
		if err != nil {
			a.log.Warn("invalid source config; keeping previous", logx.Err(err))
		}
	}

	eventbus.Publish(a.bus, eventbus.ConfigReloaded, sections)
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

// Stop shuts down in dependency order: no new ticks, then the cycle in
// flight, then transport and dispatch, then storage.
func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")

	// Cycles run on a detached context and are awaited below.
	a.sup.Cancel()

	a.step(ctx, "scheduler", 5*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	a.step(ctx, "cycle", 30*time.Second, a.waitIdle)
	a.step(ctx, "adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	a.step(ctx, "supervisor", 2*time.Second, a.sup.Stop)
	a.step(ctx, "storage", 1*time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

// waitIdle polls until no cycle is running or ctx ends.
func (a *App) waitIdle(ctx context.Context) error {
	if !a.pipeline.Running() {
		return nil
	}
	a.log.Info("waiting for running cycle to finish")
	t := time.NewTicker(100 * time.Millisecond)
	defer t.Stop()
	for a.pipeline.Running() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}

// step runs one shutdown step with an upper bound so one component can't
// stall the whole stop. It never extends the caller's deadline.
func (a *App) step(ctx context.Context, name string, limit time.Duration, fn func(context.Context) error) {
	start := time.Now()
	if dl, ok := ctx.Deadline(); ok {
		limit = min(limit, time.Until(dl))
	}
	if limit <= 0 {
		a.log.Warn("stop step skipped; deadline reached", logx.String("name", name))
		return
	}
	stepCtx, cancel := context.WithTimeout(ctx, limit)
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
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name),
			logx.Err(stepCtx.Err()),
			logx.Duration("elapsed", time.Since(start)))
	}
}
