package main

import (
	"fmt"
	"os"

	"arenasync-backend/cmd/arenactl/cmd"
)

func main() {
	dbFile, ok := os.LookupEnv("ARENASYNC_DB")
	if !ok {
		fmt.Println("You should specify the path of the token database in the environment variable ARENASYNC_DB.")
		os.Exit(1)
	}
	cmd.DatabaseFile = dbFile

	cmd.Execute()
}
