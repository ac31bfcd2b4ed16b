package cmd

import (
	"fmt"
	"os"
	"sort"
	"time"

	"arenasync-backend/services/tokensync"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var checkpointShowMappings bool

func init() {
	checkpointCmd.Flags().BoolVar(
		&checkpointShowMappings, "mappings", false,
		"also print the individual address to image url mappings",
	)
	rootCmd.AddCommand(checkpointCmd)
}

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint <file>...",
	Short: "Prints the contents of extraction progress artifacts.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"File", "Offset", "Mappings", "Written"})

		var progresses []tokensync.Progress
		for _, path := range args {
			p, err := tokensync.ReadProgress(path)
			if err != nil {
				fmt.Fprintln(os.Stderr, err.Error())
				os.Exit(1)
			}
			progresses = append(progresses, p)

			written := time.Unix(p.Timestamp, 0).Format(time.ANSIC)
			t.AppendRow(table.Row{path, p.Offset, p.TotalMappings, written})
		}

		t.SetStyle(table.StyleRounded)
		t.Render()

		if !checkpointShowMappings {
			return
		}
		for i, p := range progresses {
			fmt.Printf("\n%s:\n", args[i])

			addresses := make([]string, 0, len(p.Mappings))
			for address := range p.Mappings {
				addresses = append(addresses, address)
			}
			sort.Strings(addresses)

			for _, address := range addresses {
				fmt.Printf("  %s -> %s\n", address, p.Mappings[address])
			}
		}
	},
}
