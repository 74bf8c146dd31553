package cli

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"curetrack/internal/blob"
	"curetrack/internal/calendar"
	"curetrack/internal/config"
	"curetrack/internal/core"
	calmemory "curetrack/internal/infra/calendar/memory"
	calsqlite "curetrack/internal/infra/calendar/sqlite"
	memsched "curetrack/internal/infra/scheduler/memory"
	"curetrack/internal/infra/scheduler/spool"
	"curetrack/internal/logging"
	"curetrack/internal/media"
	"curetrack/pkg/domain"
)

// App is the fully wired lifecycle service and its collaborators.
type App struct {
	Config   config.Config
	Location *time.Location
	Service  *core.Service
	Photos   *media.Library
	// Exactly one of Spool and Timers is set, per reminders.driver.
	Spool    *spool.Spool
	Timers   *memsched.Scheduler
	Registry *prometheus.Registry
	Expvar   *core.ExpvarMetricsRecorder
	Logger   logging.Logger

	closers []func() error

	mu         sync.Mutex
	onReminder func(domain.Notification)
}

// OnReminder sets the handler for reminders fired by in-process timers.
func (a *App) OnReminder(fn func(domain.Notification)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onReminder = fn
}

func (a *App) fire(handle string, n domain.Notification) {
	a.mu.Lock()
	fn := a.onReminder
	a.mu.Unlock()
	a.Logger.Info("reminder fired", "handle", handle, "sample", n.SampleID, "kind", string(n.Kind))
	if fn != nil {
		fn(n)
	}
}

// scheduler returns the configured reminder backend.
func (a *App) scheduler() domain.Scheduler {
	if a.Timers != nil {
		return a.Timers
	}
	return a.Spool
}

// Close releases databases in reverse open order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func (a *App) fail(err error) (*App, error) {
	_ = a.Close()
	return nil, err
}

// openApp loads configuration and wires every collaborator. assumeYes accepts
// calendar conflicts without asking.
func openApp(ctx context.Context, env *Env, ro *RootOptions, assumeYes bool) (*App, error) {
	cfg, err := config.Load(env.Viper, ro.ConfigFile)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.TimeLocation()
	if err != nil {
		return nil, err
	}
	level := cfg.Log.Level
	if ro.LogLevel != "" {
		level = ro.LogLevel
	}
	logger := logging.New(env.Err, logging.Options{Level: level, Format: cfg.Log.Format, Service: "curetrack"})
	app := &App{Config: cfg, Location: loc, Logger: logger}

	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}
	docs, err := core.OpenSampleStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, docs.Close)

	blobs, err := blob.Open(ctx, blob.Options{Driver: cfg.Blob.Driver, FSRoot: cfg.Blob.FSRoot, S3: cfg.Blob.S3})
	if err != nil {
		return app.fail(fmt.Errorf("open photo store: %w", err))
	}
	app.Photos = media.New(blobs, media.WithLogger(logger))

	if cfg.Reminders.Driver == config.ReminderMemory {
		app.Timers = memsched.New(app.fire, memsched.WithNow(env.Now))
		app.closers = append(app.closers, func() error {
			app.Timers.Stop()
			return nil
		})
	} else {
		app.Spool, err = spool.New(cfg.Reminders.SpoolPath, spool.WithNow(env.Now))
		if err != nil {
			return app.fail(err)
		}
	}

	app.Registry = prometheus.NewRegistry()
	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promMetrics, err := core.NewPrometheusMetricsRecorder(app.Registry)
	if err != nil {
		return app.fail(err)
	}
	app.Expvar = core.NewExpvarMetricsRecorder("")

	opts := []core.Option{
		core.WithClock(core.ClockFunc(env.Now)),
		core.WithLogger(logger),
		core.WithLocation(loc),
		core.WithAuditRecorder(core.NewMemoryAuditLog(logger)),
		core.WithMetricsRecorder(core.MultiMetricsRecorder{promMetrics, app.Expvar}),
		core.WithScheduler(app.scheduler()),
		core.WithPhotoStore(app.Photos),
		core.WithConflictConfirmer(conflictPrompt(env, assumeYes)),
	}
	if ro.Trace {
		opts = append(opts, core.WithTracer(core.NewJSONTracer(env.Err)))
	}
	if cfg.Calendar.Enabled {
		provider, err := openCalendar(cfg.Calendar)
		if err != nil {
			return app.fail(err)
		}
		if c, ok := provider.(interface{ Close() error }); ok {
			app.closers = append(app.closers, c.Close)
		}
		opts = append(opts, core.WithCalendar(calendar.NewCoordinator(provider,
			calendar.WithLogger(logger),
			calendar.WithLocation(loc))))
	}
	app.Service = core.NewService(docs, opts...)
	return app, nil
}

func openCalendar(cfg config.CalendarConfig) (domain.CalendarProvider, error) {
	if cfg.Driver == config.CalendarMemory {
		p := calmemory.New()
		p.SetPermission(cfg.Permission)
		return p, nil
	}
	return calsqlite.Open(cfg.Path, calsqlite.WithPermission(cfg.Permission))
}

func conflictPrompt(env *Env, assumeYes bool) core.ConflictConfirmer {
	return core.ConflictConfirmerFunc(func(_ context.Context, sample domain.Sample, summary calendar.ConflictSummary) (bool, error) {
		_, _ = fmt.Fprintf(env.Out, "%s already has events on the due day:\n%s\n", sample.Name, summary)
		if assumeYes {
			return true, nil
		}
		return env.prompt("Add to the calendar anyway?")
	})
}
