package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"torrentplayer/internal/app"
)

// commandContext carries what every subcommand needs once flags are parsed.
type commandContext struct {
	configPath string
	cfg        app.Config
	logger     *slog.Logger
}

func (c *commandContext) load() error {
	cfg, err := app.LoadConfig(c.configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	c.cfg = cfg
	c.logger = app.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(c.logger)
	return nil
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "torrentplayer",
		Short:         "Stream and play media from torrents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), ctx)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&ctx.configPath, "config", "c", "", "TOML configuration file")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newSubtitlesCommand(ctx))
	rootCmd.AddCommand(newTorrentsCommand(ctx))
	return rootCmd
}
