package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/mxcache/internal/store"
)

// InfoResult describes an opened cache.
type InfoResult struct {
	UserID        string `json:"user_id"`
	Dir           string `json:"dir"`
	FormatVersion string `json:"format_version"`
	Initialized   bool   `json:"initialized"`
	NextBatch     string `json:"next_batch"`
	JoinedRooms   int    `json:"joined_rooms"`
	Invites       int    `json:"invites"`
}

func (r InfoResult) RenderText(w io.Writer) {
	fmt.Fprintf(w, "User:        %s\n", r.UserID)
	fmt.Fprintf(w, "Directory:   %s\n", r.Dir)
	fmt.Fprintf(w, "Format:      %s\n", r.FormatVersion)
	if !r.Initialized {
		fmt.Fprintln(w, "Initial sync has not been stored.")
		return
	}
	fmt.Fprintf(w, "Next batch:  %s\n", r.NextBatch)
	fmt.Fprintf(w, "Rooms:       %d joined, %d invited\n", r.JoinedRooms, r.Invites)
}

// NewInfoCommand creates the info command.
func NewInfoCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show where the cache lives and what it holds",
		Long: fmt.Sprintf(`Show the cache directory of the configured user, its format version
(expected %s) and its sync position.`, store.FormatVersion),
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

			return rootOpts.formatter(cmd).Success(InfoResult{
				UserID:        s.env.UserID(),
				Dir:           s.env.Dir(),
				FormatVersion: s.env.StoredFormatVersion(ctx),
				Initialized:   s.env.IsInitialized(ctx),
				NextBatch:     s.env.NextBatchToken(ctx),
				JoinedRooms:   len(s.cache.JoinedRooms(ctx)),
				Invites:       len(s.cache.Invites(ctx)),
			})
		},
	}
}
