// Package cli implements the voltgrid command line: the node daemon plus
// client commands that talk to a running node over its HTTP API.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagConfig string
	flagAPI    string
	flagCaller string
)

var rootCmd = &cobra.Command{
	Use:   "voltgrid",
	Short: "VoltGrid energy rewards node",
	Long: `VoltGrid runs the energy charging rewards ledgers: the grid token,
the charging station registry and the session rewards distributor, behind
a single serializing host with an HTTP API.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config file (TOML)")
	rootCmd.PersistentFlags().StringVar(&flagAPI, "api", "http://127.0.0.1:8720", "Base URL of the node API")
	rootCmd.PersistentFlags().StringVar(&flagCaller, "caller", "", "Principal to act as")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
