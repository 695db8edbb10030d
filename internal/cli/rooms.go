package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/mxcache/internal/cache"
)

// RoomsOptions holds flags for the rooms command.
type RoomsOptions struct {
	*RootOptions
	WithInvites bool
}

// RoomRow is one room in a listing.
type RoomRow struct {
	RoomID string `json:"room_id"`
	cache.RoomInfo
}

// RoomList is the result of the rooms and invites commands.
type RoomList struct {
	Rooms []RoomRow `json:"rooms"`
}

func newRoomList(infos map[string]cache.RoomInfo) RoomList {
	list := RoomList{Rooms: make([]RoomRow, 0, len(infos))}
	for _, id := range slices.Sorted(maps.Keys(infos)) {
		list.Rooms = append(list.Rooms, RoomRow{RoomID: id, RoomInfo: infos[id]})
	}
	return list
}

// RenderText writes one line per room.
func (l RoomList) RenderText(w io.Writer) {
	if len(l.Rooms) == 0 {
		fmt.Fprintln(w, "No rooms in cache.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, r := range l.Rooms {
		marker := ""
		if r.IsInvite {
			marker = " [invite]"
		}
		fmt.Fprintf(tw, "%s\t%s%s\t%d members\t%s\n", r.RoomID, r.Name, marker, r.MemberCount, r.JoinRule)
		if r.MsgInfo != nil {
			fmt.Fprintf(tw, "\t  %s%s\t%s\t\n", r.MsgInfo.Username, r.MsgInfo.Body, r.MsgInfo.Timestamp)
		}
	}
	tw.Flush()
}

// NewRoomsCommand creates the rooms command.
func NewRoomsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RoomsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rooms [room-id...]",
		Short: "List cached rooms",
		Long: `List the joined rooms in the cache with their computed name, member
count, join rule and last message. With room ids, only those rooms are shown;
ids that are not cached are left out.

Examples:
  mxcache rooms
  mxcache rooms --invites
  mxcache rooms '!abc:example.org' --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRooms(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.WithInvites, "invites", false, "include pending invites")

	return cmd
}

func runRooms(opts *RoomsOptions, ids []string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	s, err := opts.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	var infos map[string]cache.RoomInfo
	if len(ids) > 0 {
		infos = s.cache.RoomInfos(ctx, ids)
	} else {
		infos = s.cache.AllRoomInfo(ctx, opts.WithInvites)
	}
	return opts.formatter(cmd).Success(newRoomList(infos))
}

// NewInvitesCommand creates the invites command.
func NewInvitesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "invites",
		Short: "List pending invites",
		Long: `List the rooms the user has been invited to, named from the stripped
invite state.`,
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

			infos := make(map[string]cache.RoomInfo)
			for _, id := range s.cache.Invites(ctx) {
				if info, ok := s.cache.InviteInfo(ctx, id); ok {
					infos[id] = info
				}
			}
			return rootOpts.formatter(cmd).Success(newRoomList(infos))
		},
	}
}
