package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 10, cfg.Negotiation.MaxRounds)
	assert.Equal(t, 120*time.Second, cfg.Negotiation.TurnTimeout)
	assert.Equal(t, SettlementDryRun, cfg.Settlement.Mode)
	assert.Equal(t, ProtocolHTTP, cfg.Negotiation.Protocol)
	assert.Equal(t, 0.65, cfg.Oracle.SellerFloorRate)
	assert.Equal(t, PlaceholderEscrow, cfg.Settlement.Wallets.Escrow)
	assert.Equal(t, PlaceholderCounterparty, cfg.Settlement.Wallets.Counterparty)
	assert.Equal(t, PlaceholderOriginator, cfg.Settlement.Wallets.Originator)
	require.NoError(t, cfg.Validate())
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("MAX_ROUNDS", "")
	t.Setenv("SELLER_AGENT_URL", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	cfg.Negotiation.MaxRounds = 4
	cfg.Negotiation.SellerURL = "http://seller:9011"
	cfg.Database.Driver = "sqlite"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.Negotiation.MaxRounds)
	assert.Equal(t, "http://seller:9011", loaded.Negotiation.SellerURL)
	assert.Equal(t, "sqlite", loaded.Database.Driver)
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("MAX_ROUNDS", "3")
	t.Setenv("TURN_TIMEOUT", "5s")
	t.Setenv("MYSQL_DATABASE", "other_db")
	t.Setenv("USER_WALLET_ADDRESS", "0xuser")
	t.Setenv("NEGOTIATION_PROTOCOL", "a2a")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Negotiation.MaxRounds)
	assert.Equal(t, 5*time.Second, cfg.Negotiation.TurnTimeout)
	assert.Equal(t, "other_db", cfg.Database.Name)
	assert.Equal(t, "0xuser", cfg.Settlement.Wallets.Originator)
	assert.Equal(t, ProtocolA2A, cfg.Negotiation.Protocol)
}

func TestConfig_EnvOverrideInvalid(t *testing.T) {
	t.Setenv("MAX_ROUNDS", "ten")
	_, err := Load("")
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	cases := map[string]func(*Config){
		"zero rounds":               func(c *Config) { c.Negotiation.MaxRounds = 0 },
		"negative timeout":          func(c *Config) { c.Negotiation.TurnTimeout = -time.Second },
		"unknown driver":            func(c *Config) { c.Database.Driver = "postgres" },
		"unknown mode":              func(c *Config) { c.Settlement.Mode = "wire" },
		"unknown protocol":          func(c *Config) { c.Negotiation.Protocol = "grpc" },
		"locus without key":         func(c *Config) { c.Settlement.Mode = SettlementLocus },
		"floor above one":           func(c *Config) { c.Oracle.SellerFloorRate = 1.5 },
		"empty escrow":              func(c *Config) { c.Settlement.Wallets.Escrow = "" },
		"empty counterparty":        func(c *Config) { c.Settlement.Wallets.Counterparty = "" },
		"empty originator":          func(c *Config) { c.Settlement.Wallets.Originator = "" },
		"locus placeholder wallets": func(c *Config) { c.Settlement.Mode, c.Settlement.APIKey = SettlementLocus, "key" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfig_ValidateLocusWallets(t *testing.T) {
	cfg := Default()
	cfg.Settlement.Mode = SettlementLocus
	cfg.Settlement.APIKey = "key"
	cfg.Settlement.Wallets = WalletsConfig{Escrow: "0xescrow", Counterparty: "0xseller", Originator: "0xuser"}
	require.NoError(t, cfg.Validate())

	cfg.Settlement.Wallets.Counterparty = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "settlement.wallets.counterparty")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(os.TempDir(), "does-not-exist", "config.yaml"))
	assert.Error(t, err)
}
