package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/mxcache/internal/cache"
)

// MembersOptions holds flags for the members command.
type MembersOptions struct {
	*RootOptions
	Offset int
	Limit  int
}

// MemberList is the result of the members command.
type MemberList struct {
	RoomID  string             `json:"room_id"`
	Members []cache.RoomMember `json:"members"`
}

func (l MemberList) RenderText(w io.Writer) {
	if len(l.Members) == 0 {
		fmt.Fprintf(w, "No members cached for %s.\n", l.RoomID)
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, m := range l.Members {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", m.UserID, m.DisplayName, m.AvatarURL)
	}
	tw.Flush()
}

// NewMembersCommand creates the members command.
func NewMembersCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MembersOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "members <room-id>",
		Short: "List members of a joined room",
		Long: `List one page of the members of a joined room in user id order.

Example:
  mxcache members '!abc:example.org' --offset 50 --limit 50`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			s, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			return opts.formatter(cmd).Success(MemberList{
				RoomID:  args[0],
				Members: s.cache.Members(ctx, args[0], opts.Offset, opts.Limit),
			})
		},
	}

	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "index of the first member")
	cmd.Flags().IntVar(&opts.Limit, "limit", 30, "maximum number of members")

	return cmd
}
