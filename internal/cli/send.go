package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewSendCommand creates the send command.
func NewSendCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <sender> <receiver> [message...]",
		Short: "Send a check to another user",
		Long: `Send a check from one user to another. Fails if the sender has exhausted
the daily quota or a pending check already exists between the pair.

Example:
  checkmate send alice bob "did you stretch today?"`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(rootOpts, args[0], args[1], strings.Join(args[2:], " "), cmd)
		},
	}
	return cmd
}

func runSend(opts *RootOptions, sender, receiver, message string, cmd *cobra.Command) error {
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

	c, err := eng.Send(cmd.Context(), sender, receiver, message)
	if err != nil {
		return out.Fail(err)
	}

	return out.Success(viewCheck(c),
		fmt.Sprintf("check %s sent: %s -> %s, confirm by %s",
			c.ID, c.Sender, c.Receiver, c.Deadline.Format("15:04:05")))
}
