package cmd

import (
	"github.com/spf13/cobra"

	"melodex/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the HTTP server",
	Long:  `Run the Melodex HTTP server: the REST API, the scan progress websocket and the filesystem watcher.`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
