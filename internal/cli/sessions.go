package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/mxcache/internal/session"
)

type sessionStats struct {
	session.Stats
}

func (s sessionStats) RenderText(w io.Writer) {
	account := "no"
	if s.Account {
		account = "yes"
	}
	fmt.Fprintf(w, "Account saved: %s\n", account)
	fmt.Fprintf(w, "Olm sessions: %d\n", s.Olm)
	fmt.Fprintf(w, "Inbound group sessions: %d\n", s.Inbound)
	fmt.Fprintf(w, "Outbound group sessions: %d\n", len(s.Outbound))
	for _, o := range s.Outbound {
		fmt.Fprintf(w, "  %s  %s  index %d\n", o.RoomID, o.SessionID, o.MessageIndex)
	}
}

// NewSessionsCommand creates the sessions command.
func NewSessionsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "Summarise stored encryption sessions",
		Long: `Count the stored Olm and Megolm sessions and list each room's outbound
session with its message index. Pickles are not opened.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			s, err := rootOpts.open(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			stats, err := session.ReadStats(ctx, s.env)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to read sessions", err)
			}
			return rootOpts.formatter(cmd).Success(sessionStats{stats})
		},
	}
}
