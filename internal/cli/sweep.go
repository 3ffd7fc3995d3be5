package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewSweepCommand creates the sweep command.
func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Expire every pending check whose deadline has passed",
		Long: `Run one expiry sweep: every pending check at or past its deadline is
moved to expired and the sender awarded. Safe to run concurrently with a
live server; each check is expired at most once.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(rootOpts, cmd)
		},
	}
	return cmd
}

func runSweep(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger := newLogger(opts)
	out := Formatter{Format: opts.Format, Out: cmd.OutOrStdout()}

	st, eng, err := openEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	expired, err := eng.ExpireDue(cmd.Context(), eng.Now())
	if err != nil {
		return out.Fail(err)
	}

	return out.Success(map[string]any{"expired": expired},
		fmt.Sprintf("expired %d check(s)", len(expired)))
}
