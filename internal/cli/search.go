package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/mxcache/internal/cache"
)

// SearchOptions holds flags for the search commands.
type SearchOptions struct {
	*RootOptions
	Max int
}

// RoomMatches is the result of search rooms.
type RoomMatches struct {
	Query   string                   `json:"query"`
	Results []cache.RoomSearchResult `json:"results"`
}

func (m RoomMatches) RenderText(w io.Writer) {
	if len(m.Results) == 0 {
		fmt.Fprintf(w, "No rooms match %q.\n", m.Query)
		return
	}
	for _, r := range m.Results {
		fmt.Fprintf(w, "%3d  %s  %s\n", r.Score, r.RoomID, r.Info.Name)
	}
}

// UserMatches is the result of search users.
type UserMatches struct {
	RoomID  string                   `json:"room_id"`
	Query   string                   `json:"query"`
	Results []cache.UserSearchResult `json:"results"`
}

func (m UserMatches) RenderText(w io.Writer) {
	if len(m.Results) == 0 {
		fmt.Fprintf(w, "No members of %s match %q.\n", m.RoomID, m.Query)
		return
	}
	for _, r := range m.Results {
		fmt.Fprintf(w, "%3d  %s  %s\n", r.Score, r.UserID, r.DisplayName)
	}
}

// NewSearchCommand creates the search command and its subcommands.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SearchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Fuzzy search rooms and members",
		Long: `Rank joined rooms by name, or the members of a room by display name,
using the client's approximate substring distance. Lower scores are better.`,
	}
	cmd.PersistentFlags().IntVar(&opts.Max, "max", 10, "maximum number of results")

	cmd.AddCommand(&cobra.Command{
		Use:           "rooms <query>",
		Short:         "Search joined rooms by name",
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

			return opts.formatter(cmd).Success(RoomMatches{
				Query:   args[0],
				Results: s.cache.SearchRooms(ctx, args[0], opts.Max),
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "users <room-id> <query>",
		Short:         "Search the members of a room",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			s, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			return opts.formatter(cmd).Success(UserMatches{
				RoomID:  args[0],
				Query:   args[1],
				Results: s.cache.SearchUsers(ctx, args[0], args[1], opts.Max),
			})
		},
	})

	return cmd
}
