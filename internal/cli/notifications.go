package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NotificationsOptions holds flags for the notifications command.
type NotificationsOptions struct {
	*RootOptions
	Mark   []string
	Remove []string
}

// NotificationList is the result of the notifications command.
type NotificationList struct {
	Sent []string `json:"sent"`
}

func (l NotificationList) RenderText(w io.Writer) {
	if len(l.Sent) == 0 {
		fmt.Fprintln(w, "No notifications recorded.")
		return
	}
	for _, id := range l.Sent {
		fmt.Fprintln(w, id)
	}
}

// NewNotificationsCommand creates the notifications command.
func NewNotificationsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NotificationsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Show or edit the sent-notification ledger",
		Long: `Show the events a desktop notification was already sent for. --mark
records events as notified and --remove forgets them once they are read.
Edits are applied before the ledger is listed.

Example:
  mxcache notifications --mark '$abc' --remove '$old'`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			s, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			for _, id := range opts.Mark {
				if err := s.cache.MarkSentNotification(ctx, id); err != nil {
					return WrapExitError(ExitFailure, "failed to mark notification", err)
				}
			}
			for _, id := range opts.Remove {
				if err := s.cache.RemoveReadNotification(ctx, id); err != nil {
					return WrapExitError(ExitFailure, "failed to remove notification", err)
				}
			}
			return opts.formatter(cmd).Success(NotificationList{Sent: s.cache.SentNotifications(ctx)})
		},
	}

	cmd.Flags().StringSliceVar(&opts.Mark, "mark", nil, "event ids to record as notified")
	cmd.Flags().StringSliceVar(&opts.Remove, "remove", nil, "event ids to forget")

	return cmd
}
