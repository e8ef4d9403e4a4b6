package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/holiman/uint256"
	"github.com/joho/godotenv"

	"github.com/voltgrid-network/voltgrid/internal/api"
	"github.com/voltgrid-network/voltgrid/internal/chain"
	"github.com/voltgrid-network/voltgrid/internal/domain"
	"github.com/voltgrid-network/voltgrid/internal/infra/sqlite"
)

// Run starts the node with the given config file path and blocks until
// SIGINT or SIGTERM.
func Run(configPath string) error {
	// .env is optional; real env always wins.
	_ = godotenv.Load()

	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return fmt.Errorf("data dir %s: %w", cfg.Storage.DataDir, err)
	}
	db, err := sqlite.Open(cfg.Storage.DataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	genesis, err := buildGenesis(cfg.Genesis)
	if err != nil {
		return err
	}
	host, err := chain.New(genesis, db, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	host.StartClock(ctx, cfg.Chain.Interval())

	server := api.NewServer(host, log)
	if cfg.Metrics.Enabled {
		server.EnableMetrics()
	}
	httpServer := &http.Server{
		Addr:    cfg.API.Addr(),
		Handler: server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("api listening", "addr", cfg.API.Addr(), "metrics", cfg.Metrics.Enabled)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// buildGenesis converts the config section into the chain bootstrap state.
func buildGenesis(g GenesisConfig) (chain.Genesis, error) {
	fee, err := uint256.FromDecimal(orZero(g.RegistrationFee))
	if err != nil {
		return chain.Genesis{}, fmt.Errorf("registration fee %q: %w", g.RegistrationFee, err)
	}
	supply, err := uint256.FromDecimal(orZero(g.InitialSupply))
	if err != nil {
		return chain.Genesis{}, fmt.Errorf("initial supply %q: %w", g.InitialSupply, err)
	}
	return chain.Genesis{
		TokenOwner:      domain.Principal(g.TokenOwner),
		RegistryAdmin:   domain.Principal(g.RegistryAdmin),
		Oracle:          domain.Principal(g.Oracle),
		RegistrationFee: fee,
		InitialSupply:   supply,
		SupplyRecipient: domain.Principal(g.SupplyRecipient),
		Users:           g.GenesisUsers(),
		TokenContract:   g.TokenContract,
		StationContract: g.StationContract,
		UserContract:    g.UserContract,
	}, nil
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
