package main

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"torrentplayer/internal/domain"
	"torrentplayer/internal/services/session/language"
	"torrentplayer/internal/services/session/subtitles"
)

func newSubtitlesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subtitles",
		Short: "Work with subtitle files",
	}
	cmd.AddCommand(newSubtitlesInspectCommand(ctx))
	return cmd
}

func newSubtitlesInspectCommand(ctx *commandContext) *cobra.Command {
	var autoSelect bool
	cmd := &cobra.Command{
		Use:   "inspect <path>...",
		Short: "Convert subtitle files and show the detected languages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var detector subtitles.Detector = subtitles.WhatlangDetector{}
			if ctx.cfg.RedisURL != "" {
				cache, closeCache, err := connectLanguageCache(cmd.Context(), ctx.cfg.RedisURL)
				if err != nil {
					ctx.logger.Warn("language cache unavailable", slog.String("error", err.Error()))
				} else {
					defer closeCache()
					detector = subtitles.CachedDetector{Next: detector, Cache: cache, Logger: ctx.logger}
				}
			}

			loader := &subtitles.Loader{Detector: detector}
			tracks, err := loader.Load(cmd.Context(), args)
			if err != nil {
				return err
			}

			state := domain.SubtitleState{SelectedIndex: domain.NoSubtitle}
			subtitles.Merge(&state, tracks, autoSelect, language.NewMatcher(ctx.cfg.SystemLocale))
			fmt.Fprintln(cmd.OutOrStdout(), renderSubtitleTable(state))
			return nil
		},
	}
	cmd.Flags().BoolVar(&autoSelect, "auto-select", true, "Select a track matching the system language")
	return cmd
}

func renderSubtitleTable(state domain.SubtitleState) string {
	rows := make([][]string, 0, len(state.Tracks))
	for i, track := range state.Tracks {
		selected := ""
		if i == state.SelectedIndex {
			selected = "yes"
		}
		rows = append(rows, []string{strconv.Itoa(i), track.Label, track.Language, selected, track.FilePath})
	}
	return renderTable(
		[]string{"#", "Label", "Language", "Selected", "Path"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
	)
}
