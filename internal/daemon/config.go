// Package daemon wires the VoltGrid node: configuration, storage, the
// serializing chain host and the HTTP API, with graceful shutdown.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/voltgrid-network/voltgrid/internal/domain"
)

// Config is the node configuration, loaded from TOML with env overrides.
type Config struct {
	API     APIConfig     `toml:"api"`
	Chain   ChainConfig   `toml:"chain"`
	Genesis GenesisConfig `toml:"genesis"`
	Storage StorageConfig `toml:"storage"`
	Metrics MetricsConfig `toml:"metrics"`
}

// APIConfig configures the HTTP listener.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// ChainConfig configures the block clock.
type ChainConfig struct {
	// BlockInterval is the wall time per block. One minute keeps block
	// height aligned with the minute-based day arithmetic.
	BlockInterval string `toml:"block_interval"`
}

// GenesisConfig is the bootstrap state for a fresh data directory.
type GenesisConfig struct {
	TokenOwner      string   `toml:"token_owner"`
	RegistryAdmin   string   `toml:"registry_admin"`
	Oracle          string   `toml:"oracle"`
	RegistrationFee string   `toml:"registration_fee"`
	InitialSupply   string   `toml:"initial_supply"`
	SupplyRecipient string   `toml:"supply_recipient"`
	Users           []string `toml:"users"`
	TokenContract   string   `toml:"token_contract"`
	StationContract string   `toml:"station_contract"`
	UserContract    string   `toml:"user_contract"`
}

// StorageConfig configures the data directory.
type StorageConfig struct {
	DataDir string `toml:"data_dir"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8720,
		},
		Chain: ChainConfig{
			BlockInterval: "1m",
		},
		Genesis: GenesisConfig{
			RegistrationFee: "100",
			TokenContract:   "voltgrid.energy-token",
			StationContract: "voltgrid.station-registry",
			UserContract:    "voltgrid.user-registry",
		},
		Storage: StorageConfig{
			DataDir: filepath.Join(home, ".voltgrid"),
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// LoadConfig reads the TOML file at path over the defaults. A missing file
// is not an error; env overrides are applied last.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv applies VOLTGRID_* environment overrides.
func applyEnv(cfg *Config) {
	if v := os.Getenv("VOLTGRID_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("VOLTGRID_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
	if v := os.Getenv("VOLTGRID_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("VOLTGRID_BLOCK_INTERVAL"); v != "" {
		cfg.Chain.BlockInterval = v
	}
}

// Addr returns the API listen address.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Interval parses the configured block interval, falling back to one minute
// on a bad or empty value.
func (c ChainConfig) Interval() time.Duration {
	d, err := time.ParseDuration(c.BlockInterval)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}

// GenesisUsers converts the configured user allow list.
func (c GenesisConfig) GenesisUsers() []domain.Principal {
	out := make([]domain.Principal, 0, len(c.Users))
	for _, u := range c.Users {
		out = append(out, domain.Principal(u))
	}
	return out
}
