package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sendsim/internal/config"
	"sendsim/internal/monitor"
	"sendsim/internal/runtime/supervisor"
	"sendsim/internal/schedule"
	"sendsim/internal/sim"
	logx "sendsim/pkg/logx"
)

// App hosts one of three run modes:
//   - once (default): a single run, then exit
//   - watch: run, then re-run whenever the config file changes
//   - scheduled: re-run on the config's schedule until interrupted
type App struct {
	watch bool

	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
}

func New(cfgPath string, watch bool) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(loggingConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	return &App{watch: watch, cfgm: cfgm, log: log, logs: logSvc}, nil
}

func loggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

// Run dispatches to the configured mode and blocks until it finishes.
func (a *App) Run(ctx context.Context) error {
	defer a.logs.Close()

	cfg := a.cfgm.Get()
	spec := strings.TrimSpace(cfg.Schedule)
	if a.watch && spec != "" {
		return fmt.Errorf("-watch cannot be combined with schedule %q: pick one", spec)
	}

	switch {
	case a.watch:
		return a.runWatch(ctx)
	case spec != "":
		return a.runScheduled(ctx, spec)
	default:
		return a.runOnce(ctx, cfg)
	}
}

func (a *App) runOnce(ctx context.Context, cfg *config.Config) error {
	sink := monitor.MultiSink{
		monitor.NewConsoleSink(logx.Stdout()),
		monitor.NewLogSink(a.log.With(logx.String("comp", "monitor"))),
	}
	s, err := sim.New(cfg, a.log.With(logx.String("comp", "sim")), sim.WithProgressSink(sink))
	if err != nil {
		return err
	}
	_, err = s.Run(ctx)
	return err
}

func (a *App) runScheduled(ctx context.Context, raw string) error {
	spec, err := schedule.ParseSpec(raw)
	if err != nil {
		return err
	}
	sched := schedule.New(spec, a.log.With(logx.String("comp", "schedule")))

	run := func(c context.Context) error {
		err := a.runOnce(c, a.cfgm.Get())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	// First run right away; the schedule covers the rest.
	if err := run(ctx); err != nil {
		return err
	}
	if err := sched.Start(ctx, run); err != nil {
		return err
	}
	<-ctx.Done()
	sched.Stop()
	return nil
}

func (a *App) runWatch(ctx context.Context) error {
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	// Reloads are transactional: a config that fails validation, or one that
	// tries to switch modes mid-watch, never replaces the committed one.
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		if s := strings.TrimSpace(cfg.Schedule); s != "" {
			return fmt.Errorf("schedule %q cannot be set in watch mode", s)
		}
		return nil
	})

	a.sup = supervisor.NewSupervisor(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	// Pending re-run, capacity one: a newer config replaces a queued one.
	runs := make(chan *config.Config, 1)

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.apply", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		applied := a.cfgm.Get()
		for {
			var next *config.Config
			select {
			case <-c.Done():
				return
			case cfg, ok := <-sub:
				if !ok {
					return
				}
				next = drainLatest(sub, cfg)
			}

			sections, attrs := config.SummarizeConfigChange(applied, next)
			if len(sections) == 0 {
				a.log.Debug("config reloaded with no effective changes")
				continue
			}
			applied = next

			fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
			a.log.Info("config reloaded", fields...)

			a.logs.Apply(loggingConfig(next))

			if !config.NeedsNewRun(sections) {
				continue
			}
			queueRun(runs, next)
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	// First run with the boot config, then one run per effective change.
	a.sup.Go("runner", func(c context.Context) error {
		cfg := a.cfgm.Get()
		for {
			if err := a.runOnce(c, cfg); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				// Keep watching; the next config change can fix it.
				a.log.Warn("run failed", logx.Err(err))
			}
			a.log.Info("watching for config changes")
			select {
			case <-c.Done():
				return nil
			case cfg = <-runs:
			}
		}
	})

	<-a.sup.Context().Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.sup.Wait(stopCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// drainLatest empties sub of any burst of updates, keeping the newest.
func drainLatest(sub chan *config.Config, cur *config.Config) *config.Config {
	for {
		select {
		case next := <-sub:
			if next != nil {
				cur = next
			}
		default:
			return cur
		}
	}
}

// queueRun replaces whatever re-run is pending with cfg. The apply pump is
// the only producer, so the push after the eviction cannot block.
func queueRun(runs chan *config.Config, cfg *config.Config) {
	select {
	case runs <- cfg:
		return
	default:
	}
	select {
	case <-runs:
	default:
	}
	select {
	case runs <- cfg:
	default:
	}
}
