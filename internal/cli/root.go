package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/mxcache/internal/cache"
	"github.com/roach88/mxcache/internal/config"
	"github.com/roach88/mxcache/internal/logging"
	"github.com/roach88/mxcache/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Dir        string
	UserID     string

	// Logger overrides the logger built from the configuration (for testing).
	Logger *zap.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the mxcache CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mxcache",
		Short: "Inspect and maintain a Matrix client cache",
		Long: `mxcache reads and maintains the on-disk cache of a Matrix client:
rooms, invites, members, timelines, read receipts and encryption sessions.

The cache location and user come from the config file, MXCACHE_* environment
variables, or the --dir and --user flags, in increasing order of precedence.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to TOML config file")
	cmd.PersistentFlags().StringVar(&opts.Dir, "dir", "", "cache directory (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.UserID, "user", "", "Matrix user id (overrides config)")

	cmd.AddCommand(NewRoomsCommand(opts))
	cmd.AddCommand(NewInvitesCommand(opts))
	cmd.AddCommand(NewMembersCommand(opts))
	cmd.AddCommand(NewTimelineCommand(opts))
	cmd.AddCommand(NewSearchCommand(opts))
	cmd.AddCommand(NewApplyCommand(opts))
	cmd.AddCommand(NewPruneCommand(opts))
	cmd.AddCommand(NewNotificationsCommand(opts))
	cmd.AddCommand(NewSessionsCommand(opts))
	cmd.AddCommand(NewInfoCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// formatter returns the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// opened is an environment opened for one command invocation.
type opened struct {
	cfg   *config.Config
	log   *zap.Logger
	env   *store.Env
	cache *cache.Cache
}

func (s *opened) Close() {
	if err := s.env.Close(); err != nil {
		s.log.Error("close environment", zap.Error(err))
	}
	_ = s.log.Sync()
}

// open loads the configuration, applies flag overrides and opens the
// environment. Errors carry ExitCommandError.
func (o *RootOptions) open(ctx context.Context, cacheOpts ...cache.Option) (*opened, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.Dir != "" {
		cfg.Store.Dir = o.Dir
	}
	if o.UserID != "" {
		cfg.Identity.UserID = o.UserID
	}
	if err := cfg.RequireUser(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}

	log := o.Logger
	if log == nil {
		level := cfg.Log.Level
		if o.Verbose {
			level = "debug"
		}
		log, err = logging.New(logging.Config{Level: level, Format: cfg.Log.Format})
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to build logger", err)
		}
	}

	env, err := store.Open(ctx, store.Options{
		Dir:     cfg.Store.Dir,
		UserID:  cfg.Identity.UserID,
		MapSize: cfg.MapSize(),
		Logger:  logging.Named(log, "store"),
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open cache", err)
	}

	opts := append([]cache.Option{cache.WithLogger(logging.Named(log, "cache"))}, cacheOpts...)
	return &opened{
		cfg:   cfg,
		log:   log,
		env:   env,
		cache: cache.New(env, opts...),
	}, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
