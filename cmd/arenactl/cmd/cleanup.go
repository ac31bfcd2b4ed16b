package cmd

import (
	"fmt"
	"os"

	"arenasync-backend/services/imagesync"

	"github.com/spf13/cobra"
)

var cleanupImagesDir string

func init() {
	cleanupCmd.Flags().StringVar(
		&cleanupImagesDir, "images-dir", "token_images",
		"directory downloaded images are stored in",
	)
	rootCmd.AddCommand(cleanupCmd)
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Removes image files that no longer correspond to a successful scrape.",
	Run: func(cmd *cobra.Command, args []string) {
		service := imagesync.NewService(store(), nil, imagesync.Config{
			ImagesDir: cleanupImagesDir,
		})
		removed, err := service.Cleanup(cmd.Context())
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		fmt.Printf("removed %d orphaned file(s)\n", removed)
	},
}
