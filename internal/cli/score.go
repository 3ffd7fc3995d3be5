package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fabriziosalmi/checkmate/internal/check"
)

// NewScoreCommand creates the score command.
func NewScoreCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score [user...]",
		Short: "Show user scores and daily-quota usage",
		Long: `Show scores for the named users, or for every user when none are given.

Example:
  checkmate score
  checkmate score alice bob`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(rootOpts, args, cmd)
		},
	}
	return cmd
}

type scoreView struct {
	ID        string `json:"id"`
	Score     int    `json:"score"`
	SentToday int    `json:"sent_today"`
}

func runScore(opts *RootOptions, ids []string, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	out := Formatter{Format: opts.Format, Out: cmd.OutOrStdout()}

	st, _, err := openEngine(cfg, newLogger(opts))
	if err != nil {
		return err
	}
	defer st.Close()

	var users []check.User
	if len(ids) == 0 {
		users, err = st.ListUsers(cmd.Context())
		if err != nil {
			return out.Fail(err)
		}
	} else {
		for _, id := range ids {
			u, err := st.GetUser(cmd.Context(), id)
			if err != nil {
				return out.Fail(err)
			}
			users = append(users, u)
		}
	}

	views := make([]scoreView, 0, len(users))
	var lines []string
	for _, u := range users {
		views = append(views, scoreView{ID: u.ID, Score: u.Score, SentToday: u.SentToday})
		lines = append(lines, fmt.Sprintf("%s\tscore=%d\tsent_today=%d", u.ID, u.Score, u.SentToday))
	}

	return out.Success(views, strings.Join(lines, "\n"))
}
