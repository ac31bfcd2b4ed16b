package cmd

import (
	"fmt"
	"os"

	"arenasync-backend/lib/tokenstore/db"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var compareLimit int64

func init() {
	compareCmd.Flags().Int64Var(&compareLimit, "limit", 50, "maximum number of tokens to print")
	rootCmd.AddCommand(compareCmd)
}

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Prints tokens that have image urls from both sources side by side.",
	Run: func(cmd *cobra.Command, args []string) {
		pairs, err := db.New(store()).ListImageSourcePairs(cmd.Context(), compareLimit)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Token", "Symbol", "Canonical Image", "Arena Image"})

		for _, p := range pairs {
			name := p.TokenName.String
			if name == "" {
				name = p.TokenAddress
			}
			t.AppendRow(table.Row{
				name,
				p.TokenSymbol.String,
				p.ImageUrl.String,
				p.ArenaImageUrl.String,
			})
		}

		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
