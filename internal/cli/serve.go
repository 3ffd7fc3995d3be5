package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/fabriziosalmi/checkmate/internal/engine"
	"github.com/fabriziosalmi/checkmate/internal/event"
	"github.com/fabriziosalmi/checkmate/internal/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the expiry sweeper",
		Long: `Run the checkmate server: the HTTP API, the SSE event stream and the
periodic expiry sweeper, all over one SQLite database.

Example:
  checkmate serve --db ./checkmate.db
  checkmate serve --config ./checkmate.yaml --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(rootOpts, addr, cmd)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")

	return cmd
}

func runServe(opts *RootOptions, addr string, cmd *cobra.Command) error {
	logger := newLogger(opts)

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.ServerAddr = addr
	}

	hub := event.NewHub()
	clk := clockwork.NewRealClock()

	st, eng, err := openEngine(cfg, logger,
		engine.WithClock(clk),
		engine.WithSink(event.Multi(hub, event.LogSink{Logger: logger})),
	)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	sweeper, err := engine.NewSweeper(eng, cfg.SweepInterval, clk, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "build sweeper", err)
	}
	sweeper.Start()
	defer func() {
		if stopErr := sweeper.Stop(); stopErr != nil {
			logger.Error("error stopping sweeper", "error", stopErr)
		}
	}()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	srv := server.New(eng, st, hub, logger)
	logger.Info("server starting", "addr", cfg.ServerAddr, "db", cfg.StorePath,
		"sweep_interval", cfg.SweepInterval)
	if err := srv.Run(ctx, cfg.ServerAddr); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
