package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fabriziosalmi/checkmate/internal/check"
)

// NewConfirmCommand creates the confirm command.
func NewConfirmCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "confirm <actor> <check-id>",
		Short: "Confirm a pending check as its receiver",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(rootOpts, args[0], args[1], check.StatusConfirmed, cmd)
		},
	}
	return cmd
}

// NewSnoozeCommand creates the snooze command.
func NewSnoozeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snooze <actor> <check-id>",
		Short: "Snooze a pending check as its receiver",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(rootOpts, args[0], args[1], check.StatusSnoozed, cmd)
		},
	}
	return cmd
}

func runResolve(opts *RootOptions, actor, checkID string, target check.Status, cmd *cobra.Command) error {
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

	var (
		awards check.ScoreDelta
		verb   string
	)
	switch target {
	case check.StatusConfirmed:
		awards, err = eng.Confirm(cmd.Context(), actor, checkID)
		verb = "confirmed"
	case check.StatusSnoozed:
		awards, err = eng.Snooze(cmd.Context(), actor, checkID)
		verb = "snoozed"
	default:
		return WrapExitError(ExitCommandError, fmt.Sprintf("cannot resolve to %q", target), nil)
	}
	if err != nil {
		return out.Fail(err)
	}

	c, getErr := st.GetCheck(cmd.Context(), checkID)
	data := map[string]any{
		"awards": map[string]int{"sender": awards.Sender, "receiver": awards.Receiver},
	}
	if getErr == nil {
		data["check"] = viewCheck(c)
	}
	return out.Success(data,
		fmt.Sprintf("check %s %s: +%d receiver, +%d sender", checkID, verb, awards.Receiver, awards.Sender))
}
