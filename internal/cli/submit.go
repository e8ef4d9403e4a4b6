package cli

import (
	"encoding/hex"
	"errors"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/voltgrid-network/voltgrid/internal/domain"
)

func init() {
	rootCmd.AddCommand(transferCmd)

	stationCmd.AddCommand(stationRegisterCmd)
	stationRegisterCmd.Flags().String("name", "", "Station name")
	stationRegisterCmd.Flags().String("location", "", "Station location")
	stationRegisterCmd.Flags().Uint64("power", 0, "Power rating in kW")
	stationRegisterCmd.Flags().Uint64("price", 0, "Price per kWh")

	sessionCmd.AddCommand(sessionSubmitCmd)
	sessionSubmitCmd.Flags().String("station", "", "Station owner principal")
	sessionSubmitCmd.Flags().Uint64("kwh", 0, "Energy delivered in kWh")
	sessionSubmitCmd.Flags().Uint64("timestamp", 0, "Session timestamp (block height units)")

	sessionCmd.AddCommand(sessionClaimCmd)
}

func requireCallerFlag() error {
	if flagCaller == "" {
		return errors.New("--caller is required")
	}
	return nil
}

// ─── transfer ───────────────────────────────────────────────────────────────

var transferCmd = &cobra.Command{
	Use:   "transfer AMOUNT RECIPIENT",
	Short: "Transfer tokens from the caller to a recipient",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireCallerFlag(); err != nil {
			return err
		}
		var out map[string]interface{}
		err := newClient().post("/v1/token/transfers", map[string]string{
			"amount":    args[0],
			"recipient": args[1],
		}, &out)
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

// ─── station register ───────────────────────────────────────────────────────

var stationRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a charging station owned by the caller",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireCallerFlag(); err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("name")
		location, _ := cmd.Flags().GetString("location")
		power, _ := cmd.Flags().GetUint64("power")
		price, _ := cmd.Flags().GetUint64("price")

		var out map[string]interface{}
		err := newClient().post("/v1/stations/", map[string]interface{}{
			"name":          name,
			"location":      location,
			"power_kw":      power,
			"price_per_kwh": price,
		}, &out)
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

// ─── session submit ─────────────────────────────────────────────────────────

var sessionSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a charging session for the caller",
	Long: `Submit a charging session. The oracle proof is computed locally from
the node's current submission nonce and block height, so the submission
must land before the next block for the height to still match.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireCallerFlag(); err != nil {
			return err
		}
		station, _ := cmd.Flags().GetString("station")
		kwh, _ := cmd.Flags().GetUint64("kwh")
		timestamp, _ := cmd.Flags().GetUint64("timestamp")

		c := newClient()
		var config struct {
			Nonce uint64 `json:"nonce"`
		}
		if err := c.get("/v1/rewards/config", &config); err != nil {
			return err
		}
		var status struct {
			Height uint64 `json:"height"`
		}
		if err := c.get("/api/status", &status); err != nil {
			return err
		}

		proof := domain.SessionDigest(config.Nonce, domain.Principal(flagCaller),
			domain.Principal(station), kwh, timestamp, status.Height)

		var out map[string]interface{}
		err := c.post("/v1/rewards/sessions", map[string]interface{}{
			"station":   station,
			"kwh":       kwh,
			"timestamp": timestamp,
			"proof":     hex.EncodeToString(proof),
		}, &out)
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

// ─── session claim ──────────────────────────────────────────────────────────

var sessionClaimCmd = &cobra.Command{
	Use:   "claim ID",
	Short: "Claim the reward for a submitted session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireCallerFlag(); err != nil {
			return err
		}
		if _, err := strconv.ParseUint(args[0], 10, 64); err != nil {
			return errors.New("session id must be a number")
		}
		var out map[string]interface{}
		err := newClient().post("/v1/rewards/sessions/"+args[0]+"/claim", nil, &out)
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}
