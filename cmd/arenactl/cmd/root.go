package cmd

import (
	"database/sql"
	"fmt"
	"os"

	configsqlite "arenasync-backend/lib/configutil/sqlite"
	tokenstoredb "arenasync-backend/lib/tokenstore/db"

	"github.com/spf13/cobra"
)

var DatabaseFile string

var database *sql.DB

// store opens the token database on first use, so commands that never
// touch it (help, checkpoint inspection) don't create an empty file at a
// mistyped path.
func store() *sql.DB {
	if database == nil {
		db, err := configsqlite.Struct{File: DatabaseFile}.OpenDB(tokenstoredb.Schema)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		database = db
	}
	return database
}

var rootCmd = &cobra.Command{
	Use:   "arenactl",
	Short: "arenactl is a CLI interface for inspecting the arena token store.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
