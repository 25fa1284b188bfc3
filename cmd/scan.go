package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"melodex/core/scanner"
	"melodex/repository"
)

var (
	scanUser string
	scanPath string
	scanFull bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a user's library",
	Long: `Walk the user's library folder and index every audio file found.
An incremental scan skips files that have not changed since the last pass;
a full scan reprocesses everything and removes tracks whose files are gone.`,
	Run: func(cmd *cobra.Command, args []string) {
		app := bootstrap()
		defer app.close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		user, err := app.users.FindByUsername(ctx, scanUser)
		if err == repository.ErrNotFound {
			log.Fatalf("unknown user %q", scanUser)
		}
		if err != nil {
			log.Fatalf("failed to look up user: %v", err)
		}

		root, err := app.scanner.ResolveOwnerFolder(user)
		if err != nil {
			log.Fatalf("failed to resolve library folder: %v", err)
		}
		path := root
		if scanPath != "" {
			if !scanner.PathIsUnder(scanPath, root) {
				log.Fatalf("path %q is outside the library folder %q", scanPath, root)
			}
			path = scanPath
		}

		fmt.Printf("Scanning %s...\n", path)
		report, err := app.scanner.ScanTree(ctx, user.ID, path, scanFull, func(p scanner.Progress) {
			fmt.Printf("\r%d files scanned: %s\033[K", p.FilesScanned, p.CurrentPath)
		})
		fmt.Println()
		if err == context.Canceled {
			fmt.Println("Scan cancelled.")
			return
		}
		if err != nil {
			log.Fatalf("scan failed: %v", err)
		}

		fmt.Printf("Scanned %d files in %s: %d updated, %d unchanged, %d failed, %d removed.\n",
			report.FilesScanned, report.Duration.Round(time.Millisecond),
			report.TracksUpdated, report.Skipped, report.Failed, report.TracksRemoved)

		if scanFull {
			cleaned, err := app.maint.CleanUp(ctx, &user.ID)
			if err != nil {
				log.Fatalf("post-scan cleanup failed: %v", err)
			}
			fmt.Printf("Removed %d orphan albums, %d artists, %d genres.\n",
				cleaned.RemovedAlbums, cleaned.RemovedArtists, cleaned.RemovedGenres)
		}
	},
}

func init() {
	scanCmd.Flags().StringVarP(&scanUser, "user", "u", "", "username whose library to scan")
	scanCmd.Flags().StringVarP(&scanPath, "path", "p", "", "restrict the scan to a subfolder")
	scanCmd.Flags().BoolVarP(&scanFull, "full", "f", false, "reprocess all files and reconcile deletions")
	scanCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(scanCmd)
}
