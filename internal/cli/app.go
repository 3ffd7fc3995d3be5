package cli

import (
	"log/slog"
	"os"
	"time"

	"github.com/fabriziosalmi/checkmate/internal/check"
	"github.com/fabriziosalmi/checkmate/internal/config"
	"github.com/fabriziosalmi/checkmate/internal/engine"
	"github.com/fabriziosalmi/checkmate/internal/store"
)

// loadConfig resolves configuration for a command, applying the --db
// override on top of file and environment sources.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(config.New(), opts.Config)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "load config", err)
	}
	if opts.DB != "" {
		cfg.StorePath = opts.DB
	}
	return cfg, nil
}

// newLogger builds the process logger honoring --verbose.
func newLogger(opts *RootOptions) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openEngine opens the store and builds an engine from cfg. The caller
// owns closing the returned store.
func openEngine(cfg config.Config, logger *slog.Logger, extra ...engine.Option) (*store.Store, *engine.Engine, error) {
	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "open database", err)
	}
	engOpts, err := cfg.EngineOptions()
	if err != nil {
		_ = st.Close()
		return nil, nil, WrapExitError(ExitCommandError, "engine options", err)
	}
	engOpts = append(engOpts, engine.WithLogger(logger))
	engOpts = append(engOpts, extra...)
	return st, engine.New(st, engOpts...), nil
}

// checkView is the wire form of a check for CLI JSON output.
type checkView struct {
	ID         string `json:"id"`
	Sender     string `json:"sender"`
	Receiver   string `json:"receiver"`
	Message    string `json:"message,omitempty"`
	SentAt     string `json:"sent_at"`
	Deadline   string `json:"deadline"`
	Status     string `json:"status"`
	ResolvedAt string `json:"resolved_at,omitempty"`
}

func viewCheck(c check.Check) checkView {
	v := checkView{
		ID:       c.ID,
		Sender:   c.Sender,
		Receiver: c.Receiver,
		Message:  c.Message,
		SentAt:   c.SentAt.UTC().Format(time.RFC3339),
		Deadline: c.Deadline.UTC().Format(time.RFC3339),
		Status:   string(c.Status),
	}
	if !c.ResolvedAt.IsZero() {
		v.ResolvedAt = c.ResolvedAt.UTC().Format(time.RFC3339)
	}
	return v
}
