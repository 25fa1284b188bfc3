package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"melodex/repository"
)

var (
	resetUser  string
	resetForce bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Wipe a user's whole music index",
	Long: `Delete every indexed track, album, artist, genre, playlist and cover
of the named user. The audio files themselves are untouched; a rescan
rebuilds the index from them.`,
	Run: func(cmd *cobra.Command, args []string) {
		app := bootstrap()
		defer app.close()

		ctx := context.Background()
		user, err := app.users.FindByUsername(ctx, resetUser)
		if err == repository.ErrNotFound {
			log.Fatalf("unknown user %q", resetUser)
		}
		if err != nil {
			log.Fatalf("failed to look up user: %v", err)
		}

		if !resetForce {
			fmt.Printf("This deletes the whole index of %q. Continue? [y/N] ", resetUser)
			answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
			if strings.ToLower(strings.TrimSpace(answer)) != "y" {
				fmt.Println("Aborted.")
				return
			}
		}

		report, err := app.maint.ResetAllData(ctx, user.ID)
		if err != nil {
			log.Fatalf("reset failed: %v", err)
		}
		fmt.Printf("Removed %d tracks, %d albums, %d artists, %d genres.\n",
			report.RemovedTracks, report.RemovedAlbums, report.RemovedArtists, report.RemovedGenres)
	},
}

func init() {
	resetCmd.Flags().StringVarP(&resetUser, "user", "u", "", "username whose index to wipe")
	resetCmd.Flags().BoolVarP(&resetForce, "yes", "y", false, "skip the confirmation prompt")
	resetCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(resetCmd)
}
