package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/mxcache/internal/event"
)

// TimelineEntry is a compact view of a stored timeline event.
type TimelineEntry struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	Sender  string `json:"sender"`
	TS      int64  `json:"origin_server_ts"`
	Body    string `json:"body,omitempty"`
}

// TimelineResult is the result of the timeline command.
type TimelineResult struct {
	RoomID    string          `json:"room_id"`
	PrevBatch string          `json:"prev_batch"`
	Events    []TimelineEntry `json:"events"`
}

func (r TimelineResult) RenderText(w io.Writer) {
	if len(r.Events) == 0 {
		fmt.Fprintf(w, "No messages cached for %s.\n", r.RoomID)
		return
	}
	for _, e := range r.Events {
		ts := time.UnixMilli(e.TS).UTC().Format(time.DateTime)
		if e.Body != "" {
			fmt.Fprintf(w, "%s  %s: %s\n", ts, e.Sender, e.Body)
		} else {
			fmt.Fprintf(w, "%s  %s  <%s>\n", ts, e.Sender, e.Type)
		}
	}
	fmt.Fprintf(w, "prev_batch: %s\n", r.PrevBatch)
}

// NewTimelineCommand creates the timeline command.
func NewTimelineCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "timeline <room-id>",
		Short: "Show the cached messages of a room",
		Long: `Show the most recent cached messages of a joined room, oldest first,
with the token a client would paginate backwards from.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			s, err := rootOpts.open(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			events, token := s.cache.Timeline(ctx, args[0])
			result := TimelineResult{
				RoomID:    args[0],
				PrevBatch: token,
				Events:    make([]TimelineEntry, 0, len(events)),
			}
			for _, e := range events {
				result.Events = append(result.Events, TimelineEntry{
					EventID: e.EventID,
					Type:    e.Type,
					Sender:  e.Sender,
					TS:      e.OriginServerTS,
					Body:    event.Body(e),
				})
			}
			return rootOpts.formatter(cmd).Success(result)
		},
	}
}
