package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/registrar/internal/api"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Once bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the trigger engine",
		Long: `Run the trigger engine over the change log.

Each trigger resumes from its durable cursor, so events committed while
the engine was down are delivered on the next start. With --once the
engine processes every pending event and exits.

Examples:
  registrar run --db ./registrar.db
  registrar run --once --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Once, "once", false, "process pending events and exit")

	return cmd
}

func runEngine(opts *RunOptions, cmd *cobra.Command) error {
	a, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	eng, err := a.engine(ctx)
	if err != nil {
		return err
	}

	if opts.Once {
		if err := eng.Drain(ctx); err != nil {
			return WrapExitError(ExitFailure, "trigger failed", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "All pending changes processed.")
		return nil
	}

	a.logger.Info("engine starting", "db", a.cfg.Database.Path, "triggers", len(eng.Triggers()))
	fmt.Fprintln(cmd.OutOrStdout(), "Engine started. Press Ctrl-C to stop.")
	if err := eng.Run(ctx); err != nil {
		return WrapExitError(ExitFailure, "engine error", err)
	}
	a.logger.Info("engine stopped gracefully")
	return nil
}

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run the trigger engine",
		Long: `Serve the registrar HTTP API, Prometheus metrics and the change
stream, and run the trigger engine in the same process.

Examples:
  registrar serve --addr :8080`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides http.addr)")

	return cmd
}

func serve(opts *ServeOptions, cmd *cobra.Command) error {
	a, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	eng, err := a.engine(ctx)
	if err != nil {
		return err
	}

	addr := a.cfg.HTTP.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}
	srv := api.New(a.store, a.coord,
		api.WithMetrics(a.metrics),
		api.WithLogger(a.logger),
		api.WithChangeLog(a.changes),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	engineDone := make(chan error, 1)
	go func() {
		engineDone <- eng.Run(ctx)
	}()

	a.logger.Info("serving", "addr", addr)
	serveErr := srv.Serve(ctx, addr)
	cancel()
	engineErr := <-engineDone

	if err := errors.Join(serveErr, engineErr); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}
	a.logger.Info("server stopped gracefully")
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
