package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/mxcache/internal/cache"
	"github.com/roach88/mxcache/internal/event"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	Prune bool
}

// ApplyResult is the result of the apply command.
type ApplyResult struct {
	Batches       int                 `json:"batches"`
	NextBatch     string              `json:"next_batch"`
	StateUpdates  []string            `json:"state_updates"`
	ConfirmedRead map[string][]string `json:"confirmed_read"`
	Pruned        int                 `json:"pruned"`
}

func (r ApplyResult) RenderText(w io.Writer) {
	fmt.Fprintf(w, "Applied %d batch(es), next batch %q\n", r.Batches, r.NextBatch)
	for _, id := range r.StateUpdates {
		fmt.Fprintf(w, "  state updated: %s\n", id)
	}
	for _, room := range slices.Sorted(maps.Keys(r.ConfirmedRead)) {
		fmt.Fprintf(w, "  read in %s: %v\n", room, r.ConfirmedRead[room])
	}
	if r.Pruned > 0 {
		fmt.Fprintf(w, "Pruned %d message(s)\n", r.Pruned)
	}
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply <sync-file>...",
		Short: "Apply sync batches to the cache",
		Long: `Apply one or more sync batches, read from JSON or YAML files, in order.
Each batch is stored atomically; if a batch fails, the batches before it stay
applied and the command stops.

Exit codes:
  0 - All batches applied
  1 - A batch could not be read or stored
  2 - Command error (bad config, cache cannot be opened, etc.)

Examples:
  mxcache apply initial.json
  mxcache apply batch-1.yaml batch-2.yaml --prune`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Prune, "prune", false, "prune timelines after applying")

	return cmd
}

func runApply(opts *ApplyOptions, files []string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	out := opts.formatter(cmd)

	result := ApplyResult{
		StateUpdates:  []string{},
		ConfirmedRead: map[string][]string{},
	}
	onReceipts := func(roomID string, eventIDs []string) {
		result.ConfirmedRead[roomID] = append(result.ConfirmedRead[roomID], eventIDs...)
	}

	s, err := opts.open(ctx, cache.WithReceiptHandler(onReceipts))
	if err != nil {
		return err
	}
	defer s.Close()

	for _, path := range files {
		delta, err := event.LoadSyncDelta(path)
		if err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("failed to read %s", path), err)
		}
		out.VerboseLog("applying %s", path)
		if err := s.cache.ApplySyncDelta(ctx, delta); err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("failed to apply %s", path), err)
		}
		result.Batches++
		for _, id := range cache.RoomsWithStateUpdates(delta) {
			if !slices.Contains(result.StateUpdates, id) {
				result.StateUpdates = append(result.StateUpdates, id)
			}
		}
	}
	slices.Sort(result.StateUpdates)
	result.NextBatch = s.env.NextBatchToken(ctx)

	if opts.Prune {
		n, err := s.cache.Prune(ctx)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to prune", err)
		}
		result.Pruned = n
	}

	s.log.Debug("apply finished", zap.Int("batches", result.Batches))
	return out.Success(result)
}

// NewPruneCommand creates the prune command.
func NewPruneCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Trim long room timelines",
		Long: fmt.Sprintf(`Trim the timeline of every joined room holding more than %d messages
down to the newest %d.`, cache.PruneThreshold, cache.MaxRestoredMessages),
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

			n, err := s.cache.Prune(ctx)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to prune", err)
			}
			out := rootOpts.formatter(cmd)
			if rootOpts.Format == "json" {
				return out.Success(map[string]int{"pruned": n})
			}
			return out.Success(fmt.Sprintf("Pruned %d message(s)", n))
		},
	}
}
