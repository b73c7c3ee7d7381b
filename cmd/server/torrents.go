package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"torrentplayer/internal/domain"
	mongorepo "torrentplayer/internal/repository/mongo"
)

func newTorrentsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "torrents",
		Short: "Inspect persisted torrents",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List torrents saved in the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := connectMongo(cmd.Context(), ctx.cfg.MongoURI)
			if err != nil {
				return err
			}
			defer func() {
				disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = client.Disconnect(disconnectCtx)
			}()

			repo := mongorepo.NewRepository(client, ctx.cfg.MongoDatabase, ctx.cfg.MongoCollection)
			summaries, err := repo.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No torrents saved")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTorrentTable(summaries))
			return nil
		},
	})
	return cmd
}

func renderTorrentTable(summaries []domain.TorrentSummary) string {
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		name := s.DisplayName
		if name == "" {
			name = s.Name
		}
		created := "-"
		if !s.CreatedAt.IsZero() {
			created = s.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{string(s.Key), name, string(s.Status), strconv.Itoa(len(s.Files)), created})
	}
	return renderTable(
		[]string{"Key", "Name", "Status", "Files", "Created"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}
