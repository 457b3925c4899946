package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/registrar/internal/changelog"
	"github.com/roach88/registrar/internal/config"
	"github.com/roach88/registrar/internal/coordinator"
	"github.com/roach88/registrar/internal/engine"
	"github.com/roach88/registrar/internal/metrics"
	"github.com/roach88/registrar/internal/notify"
	"github.com/roach88/registrar/internal/store"
)

// app is the wired runtime shared by the commands that touch the store.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	metrics *metrics.Metrics
	coord   *coordinator.Coordinator
	changes *changelog.Log
	closers []func() error
}

// loadConfig reads the configuration and applies flag overrides.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.Database != "" {
		cfg.Database.Path = o.Database
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. --verbose forces debug level.
func newLogger(c config.LogConfig, verbose bool, w io.Writer) (*slog.Logger, error) {
	level, err := config.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	}
	return slog.New(slog.NewTextHandler(w, hopts)), nil
}

// open loads the configuration, opens the store and wires the
// coordinator. The caller must Close the app.
func (o *RootOptions) open(cmd *cobra.Command) (*app, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.Log, o.Verbose, cmd.ErrOrStderr())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}
	slog.SetDefault(logger)

	logger.Debug("opening database", "path", cfg.Database.Path)
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	mode, err := coordinator.ParseCapacityMode(cfg.Capacity.Mode)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}

	m := metrics.New()
	copts := []coordinator.Option{
		coordinator.WithCeiling(cfg.Capacity.Ceiling),
		coordinator.WithCapacityMode(mode),
		coordinator.WithRecorder(m),
		coordinator.WithLogger(logger),
	}
	if o.IDs != nil {
		copts = append(copts, coordinator.WithIDGenerator(o.IDs))
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		metrics: m,
		coord:   coordinator.New(st, copts...),
		changes: changelog.New(st,
			changelog.WithPollInterval(cfg.Triggers.PollInterval),
			changelog.WithBatchSize(cfg.Triggers.BatchSize)),
		closers: []func() error{st.Close},
	}, nil
}

// notifier delivers risk alerts to the log and, when enabled, to Redis.
func (a *app) notifier(ctx context.Context) (engine.Notifier, error) {
	n := notify.Multi{notify.NewLogNotifier(a.logger)}
	if !a.cfg.Redis.Enabled {
		return n, nil
	}

	client, err := notify.NewRedisClient(ctx, notify.RedisOptions{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Close)
	redisNotifier := notify.NewRedisNotifier(client, a.cfg.Redis.Channel)
	a.logger.Info("publishing risk alerts", "channel", redisNotifier.Channel())
	return append(n, redisNotifier), nil
}

// engine builds the trigger engine with the standard triggers.
func (a *app) engine(ctx context.Context) (*engine.Engine, error) {
	n, err := a.notifier(ctx)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to set up risk notifications", err)
	}

	eng := engine.New(a.store,
		engine.WithChangeLog(a.changes),
		engine.WithMaxDepth(a.cfg.Triggers.MaxDepth),
		engine.WithRetryDelay(a.cfg.Triggers.RetryDelay),
		engine.WithRecorder(a.metrics),
		engine.WithLogger(a.logger),
	)
	if err := eng.Register(engine.Defaults(a.store, a.coord, n, a.metrics)...); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to register triggers", err)
	}
	return eng, nil
}

// Close releases everything the app opened, in reverse order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
