package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fabriziosalmi/checkmate/internal/store"
)

// InitDBOptions holds flags for the initdb command.
type InitDBOptions struct {
	*RootOptions
	Reset  bool
	Verify bool
	Seed   []string
}

// NewInitDBCommand creates the initdb command.
func NewInitDBCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitDBOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "initdb",
		Short: "Create or verify the database schema",
		Long: `Create the SQLite database and apply the schema, optionally seeding users.

Example:
  checkmate initdb --db ./checkmate.db --seed alice --seed bob
  checkmate initdb --db ./checkmate.db --verify`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInitDB(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Reset, "reset", false, "delete the database file before initializing")
	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "verify the schema instead of creating it")
	cmd.Flags().StringArrayVar(&opts.Seed, "seed", nil, "user id to create (repeatable)")

	return cmd
}

func runInitDB(opts *InitDBOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	out := Formatter{Format: opts.Format, Out: cmd.OutOrStdout()}

	if opts.Reset {
		if opts.Verify {
			return WrapExitError(ExitCommandError, "--reset and --verify are mutually exclusive", nil)
		}
		if err := os.Remove(cfg.StorePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return WrapExitError(ExitCommandError, "reset database", err)
		}
	}

	if opts.Verify {
		st, err := store.Open(cfg.StorePath)
		if err != nil {
			return WrapExitError(ExitCommandError, "open database", err)
		}
		defer st.Close()
		if err := st.Verify(); err != nil {
			return WrapExitError(ExitFailure, "schema verification failed", err)
		}
		return out.Success(map[string]string{"database": cfg.StorePath, "schema": "ok"},
			fmt.Sprintf("schema ok: %s", cfg.StorePath))
	}

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return WrapExitError(ExitCommandError, "open database", err)
	}
	defer st.Close()

	created := 0
	for _, id := range opts.Seed {
		inserted, err := st.InsertUser(cmd.Context(), id)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("seed user %q", id), err)
		}
		if inserted {
			created++
		}
	}

	return out.Success(
		map[string]any{"database": cfg.StorePath, "seeded": created},
		fmt.Sprintf("initialized %s (%d users seeded)", cfg.StorePath, created),
	)
}
