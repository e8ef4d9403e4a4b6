package cli

import (
	"github.com/spf13/cobra"

	"github.com/voltgrid-network/voltgrid/internal/daemon"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the VoltGrid node",
	Long: `Start the node: open the data directory, restore (or bootstrap) the
ledger state, start the block clock and serve the HTTP API until
interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return daemon.Run(flagConfig)
	},
}
