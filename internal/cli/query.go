package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(stationCmd)
	stationCmd.AddCommand(stationListCmd)
	stationCmd.AddCommand(stationGetCmd)
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionGetCmd)
}

// ─── status ─────────────────────────────────────────────────────────────────

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show node chain status",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out map[string]interface{}
		if err := newClient().get("/api/status", &out); err != nil {
			return err
		}
		return printJSON(out)
	},
}

// ─── balance ────────────────────────────────────────────────────────────────

var balanceCmd = &cobra.Command{
	Use:   "balance PRINCIPAL",
	Short: "Show a principal's token balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var out map[string]interface{}
		if err := newClient().get("/v1/token/balances/"+args[0], &out); err != nil {
			return err
		}
		return printJSON(out)
	},
}

// ─── station ────────────────────────────────────────────────────────────────

var stationCmd = &cobra.Command{
	Use:   "station",
	Short: "Inspect and manage charging stations",
}

var stationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered stations",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out map[string]interface{}
		if err := newClient().get("/v1/stations/", &out); err != nil {
			return err
		}
		return printJSON(out)
	},
}

var stationGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Show one station",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var out map[string]interface{}
		if err := newClient().get("/v1/stations/"+args[0], &out); err != nil {
			return err
		}
		return printJSON(out)
	},
}

// ─── session ────────────────────────────────────────────────────────────────

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect and manage charging sessions",
}

var sessionGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Show one session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var out map[string]interface{}
		if err := newClient().get("/v1/rewards/sessions/"+args[0], &out); err != nil {
			return err
		}
		return printJSON(out)
	},
}
