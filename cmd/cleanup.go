package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"melodex/repository"
)

var cleanupUser string

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove orphaned artists, albums and genres",
	Long: `Sweep entities no track references anymore. Without --user the sweep
covers every library; with it, only the named user's entities are touched.`,
	Run: func(cmd *cobra.Command, args []string) {
		app := bootstrap()
		defer app.close()

		ctx := context.Background()
		var userID *int64
		if cleanupUser != "" {
			user, err := app.users.FindByUsername(ctx, cleanupUser)
			if err == repository.ErrNotFound {
				log.Fatalf("unknown user %q", cleanupUser)
			}
			if err != nil {
				log.Fatalf("failed to look up user: %v", err)
			}
			userID = &user.ID
		}

		report, err := app.maint.CleanUp(ctx, userID)
		if err != nil {
			log.Fatalf("cleanup failed: %v", err)
		}
		fmt.Printf("Removed %d orphan albums, %d artists, %d genres.\n",
			report.RemovedAlbums, report.RemovedArtists, report.RemovedGenres)
	},
}

func init() {
	cleanupCmd.Flags().StringVarP(&cleanupUser, "user", "u", "", "limit the sweep to one user's library")
	rootCmd.AddCommand(cleanupCmd)
}
