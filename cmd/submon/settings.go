package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/sub_mon/internal/domain"
	"github.com/eliteGoblin/focusd/sub_mon/internal/policy"
	"github.com/eliteGoblin/focusd/sub_mon/internal/usecase"
)

// withSettings opens the store and runs fn with a settings service.
// The daemon picks up the write through the store revision.
func withSettings(opts *cliOptions, fn func(ctx context.Context, svc *usecase.SettingsService) error) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	logger := createCLILogger()
	defer func() { _ = logger.Sync() }()

	svc := usecase.NewSettingsService(store, nil, logger)
	ctx := context.Background()
	if err := svc.Install(ctx); err != nil {
		return err
	}
	return fn(ctx, svc)
}

func printSettings(out io.Writer, s domain.Settings, now time.Time) {
	state := "enabled"
	switch {
	case !s.Enabled && s.LockActive(now):
		state = "disabled, but forced on by the daily lock"
	case !s.Enabled:
		state = "disabled"
	}
	fmt.Fprintf(out, "Blocking: %s\n", state)
	if s.LockActive(now) {
		fmt.Fprintf(out, "Locked until: %s\n", s.LockUntil().Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(out, "Theme: %s\n", s.Theme)
	fmt.Fprintf(out, "Blocked subreddits: %d\n", len(s.BlockList))
}

func newListCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List blocked subreddits, one per line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(opts, func(ctx context.Context, svc *usecase.SettingsService) error {
				s, err := svc.Snapshot(ctx)
				if err != nil {
					return err
				}
				if len(s.BlockList) == 0 {
					fmt.Fprintln(cmd.ErrOrStderr(), "No subreddits blocked. Add some with 'submon add <name>'.")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), policy.FormatBlockList(s.BlockList))
				return nil
			})
		},
	}
}

func newSetCmd(opts *cliOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "set -f FILE",
		Short: "Replace the block list with the contents of a file",
		Long: `Replaces the block list with free text, one entry per line.
Entries may be names (golang), r/golang, /r/golang or reddit URLs.
Use "-f -" to read from stdin. Lines that are not subreddits are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if file == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(file)
			}
			if err != nil {
				return fmt.Errorf("failed to read block list: %w", err)
			}

			return withSettings(opts, func(ctx context.Context, svc *usecase.SettingsService) error {
				s, err := svc.SetBlockList(ctx, string(data))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %d subreddits\n", len(s.BlockList))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", `File with one entry per line ("-" for stdin)`)
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newAddCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add SUBREDDIT...",
		Short: "Add subreddits to the block list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(opts, func(ctx context.Context, svc *usecase.SettingsService) error {
				s, err := svc.AddSubreddits(ctx, args...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Blocking %d subreddits\n", len(s.BlockList))
				return nil
			})
		},
	}
}

func newRemoveCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "remove SUBREDDIT...",
		Aliases: []string{"rm"},
		Short:   "Remove subreddits from the block list",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(opts, func(ctx context.Context, svc *usecase.SettingsService) error {
				s, err := svc.RemoveSubreddits(ctx, args...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Blocking %d subreddits\n", len(s.BlockList))
				return nil
			})
		},
	}
}

func newEnableCmd(opts *cliOptions, enabled bool) *cobra.Command {
	use, short := "enable", "Turn blocking on"
	if !enabled {
		use, short = "disable", "Turn blocking off (refused while locked)"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(opts, func(ctx context.Context, svc *usecase.SettingsService) error {
				if _, err := svc.SetEnabled(ctx, enabled); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Blocking %sd\n", use)
				return nil
			})
		},
	}
}

func newThemeCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "theme dark|light",
		Short:     "Set the theme of the blocked page",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(domain.ThemeDark), string(domain.ThemeLight)},
		RunE: func(cmd *cobra.Command, args []string) error {
			theme, err := domain.ParseTheme(args[0])
			if err != nil {
				return err
			}
			return withSettings(opts, func(ctx context.Context, svc *usecase.SettingsService) error {
				if _, err := svc.SetTheme(ctx, theme); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Theme set to %s\n", theme)
				return nil
			})
		},
	}
}

func newLockCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lock",
		Short: "Keep blocking on until the end of today",
		Long: `Forces blocking on until 23:59:59 local time, even if blocking is
disabled. The block list and the on/off toggle cannot be changed until then.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(opts, func(ctx context.Context, svc *usecase.SettingsService) error {
				s, err := svc.LockForToday(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Locked until %s\n", s.LockUntil().Format("2006-01-02 15:04:05"))
				return nil
			})
		},
	}
}

func newCheckCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check URL",
		Short: "Show whether a URL would be blocked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSettings(opts, func(ctx context.Context, svc *usecase.SettingsService) error {
				s, err := svc.Snapshot(ctx)
				if err != nil {
					return err
				}
				d := usecase.Evaluate(args[0], s, time.Now())
				if d.Subreddit != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", d.Action, d.Subreddit, d.Reason)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", d.Action, d.Reason)
				}
				return nil
			})
		},
	}
}

func newVersionCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
		Run: func(cmd *cobra.Command, args []string) {
			if opts.jsonOutput {
				fmt.Fprintf(cmd.OutOrStdout(), `{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
					Version, Commit, BuildTime)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "submon %s (commit: %s, built: %s)\n",
					Version, Commit, BuildTime)
			}
		},
	}
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output version info as JSON")
	return cmd
}
