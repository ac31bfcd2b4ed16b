package cmd

import (
	"fmt"
	"os"

	"arenasync-backend/services/imagesync"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var statsSkipHost string

func init() {
	statsCmd.Flags().StringVar(
		&statsSkipHost, "canonical-host", "static.starsarena.com",
		"host that counts as a canonical image source",
	)
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints image coverage statistics for the token store.",
	Run: func(cmd *cobra.Command, args []string) {
		service := imagesync.NewService(store(), nil, imagesync.Config{
			SkipCanonicalHost: statsSkipHost,
		})
		stats, err := service.Stats(cmd.Context())
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Metric", "Count"})

		t.AppendRow(table.Row{"Total tokens", stats.TotalTokens})
		t.AppendRow(table.Row{"Arena scrape succeeded", stats.Succeeded})
		t.AppendRow(table.Row{"Arena scrape failed", stats.Failed})
		t.AppendRow(table.Row{"Arena scrape not attempted", stats.NotAttempted})
		t.AppendRow(table.Row{"With arena image url", stats.WithArenaUrl})
		t.AppendRow(table.Row{"With canonical image url", stats.WithCanonicalUrl})
		if statsSkipHost != "" {
			t.AppendRow(table.Row{
				fmt.Sprintf("Image url from %s", statsSkipHost),
				stats.FromCanonicalHost,
			})
		}

		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
