package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all negotiation backend configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Negotiation NegotiationConfig `yaml:"negotiation"`
	Settlement  SettlementConfig  `yaml:"settlement"`
	Oracle      OracleConfig      `yaml:"oracle"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type DatabaseConfig struct {
	Driver     string `yaml:"driver"` // mysql, sqlite
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	Host       string `yaml:"host"`
	Name       string `yaml:"name"`
	SQLitePath string `yaml:"sqlite_path"`
}

// NegotiationConfig configures the orchestration engine.
type NegotiationConfig struct {
	MaxRounds   int           `yaml:"max_rounds"`
	TurnTimeout time.Duration `yaml:"turn_timeout"`
	BuyerURL    string        `yaml:"buyer_url"`
	SellerURL   string        `yaml:"seller_url"`
	Protocol    string        `yaml:"protocol"` // http, a2a
}

type SettlementConfig struct {
	Mode     string        `yaml:"mode"` // dry_run, locus
	LocusURL string        `yaml:"locus_url"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
	Wallets  WalletsConfig `yaml:"wallets"`
}

// WalletsConfig names the three wallets settlement moves money between.
// Escrow holds the reserved budget (the buyer agent's wallet).
type WalletsConfig struct {
	Escrow       string `yaml:"escrow"`
	Counterparty string `yaml:"counterparty"`
	Originator   string `yaml:"originator"`
}

// OracleConfig configures the Gemini-backed oracle served by the agent command.
type OracleConfig struct {
	APIKey          string  `yaml:"api_key"`
	Model           string  `yaml:"model"`
	SellerFloorRate float64 `yaml:"seller_floor_rate"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

const (
	ProtocolHTTP = "http"
	ProtocolA2A  = "a2a"
)

const (
	SettlementDryRun = "dry_run"
	SettlementLocus  = "locus"
)

// Wallet names used until real addresses are configured. They are only
// accepted in dry-run mode.
const (
	PlaceholderEscrow       = "dry-run-escrow"
	PlaceholderCounterparty = "dry-run-counterparty"
	PlaceholderOriginator   = "dry-run-originator"
)

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080"},
		Database: DatabaseConfig{
			Driver:   "mysql",
			User:     "user",
			Password: "password",
			Host:     "tcp(127.0.0.1:3306)",
			Name:     "negotiation_db",
		},
		Negotiation: NegotiationConfig{
			MaxRounds:   10,
			TurnTimeout: 120 * time.Second,
			BuyerURL:    "http://localhost:8000",
			SellerURL:   "http://localhost:8001",
			Protocol:    ProtocolHTTP,
		},
		Settlement: SettlementConfig{
			Mode:     SettlementDryRun,
			LocusURL: "https://mcp.paywithlocus.com",
			Timeout:  60 * time.Second,
			Wallets: WalletsConfig{
				Escrow:       PlaceholderEscrow,
				Counterparty: PlaceholderCounterparty,
				Originator:   PlaceholderOriginator,
			},
		},
		Oracle: OracleConfig{
			Model:           "gemini-2.0-flash-001",
			SellerFloorRate: 0.65,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads path (if non-empty) over the defaults and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	str("PORT", &c.Server.Port)

	str("DB_DRIVER", &c.Database.Driver)
	str("MYSQL_USER", &c.Database.User)
	str("MYSQL_PWD", &c.Database.Password)
	str("MYSQL_HOST", &c.Database.Host)
	str("MYSQL_DATABASE", &c.Database.Name)
	str("SQLITE_PATH", &c.Database.SQLitePath)

	str("BUYER_AGENT_URL", &c.Negotiation.BuyerURL)
	str("SELLER_AGENT_URL", &c.Negotiation.SellerURL)
	str("NEGOTIATION_PROTOCOL", &c.Negotiation.Protocol)
	if v := os.Getenv("MAX_ROUNDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MAX_ROUNDS: %w", err)
		}
		c.Negotiation.MaxRounds = n
	}
	if v := os.Getenv("TURN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TURN_TIMEOUT: %w", err)
		}
		c.Negotiation.TurnTimeout = d
	}

	str("SETTLEMENT_MODE", &c.Settlement.Mode)
	str("LOCUS_MCP_URL", &c.Settlement.LocusURL)
	str("LOCUS_API_KEY", &c.Settlement.APIKey)
	str("BUYER_AGENT_WALLET_ADDRESS", &c.Settlement.Wallets.Escrow)
	str("SELLER_AGENT_WALLET_ADDRESS", &c.Settlement.Wallets.Counterparty)
	str("USER_WALLET_ADDRESS", &c.Settlement.Wallets.Originator)

	str("GEMINI_API_KEY", &c.Oracle.APIKey)
	str("GEMINI_MODEL", &c.Oracle.Model)

	str("LOG_LEVEL", &c.Logging.Level)
	return nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Negotiation.MaxRounds < 1 {
		return fmt.Errorf("negotiation.max_rounds must be at least 1, got %d", c.Negotiation.MaxRounds)
	}
	if c.Negotiation.TurnTimeout <= 0 {
		return fmt.Errorf("negotiation.turn_timeout must be positive")
	}
	switch c.Negotiation.Protocol {
	case ProtocolHTTP, ProtocolA2A:
	default:
		return fmt.Errorf("unknown negotiation protocol %q", c.Negotiation.Protocol)
	}
	switch c.Settlement.Mode {
	case SettlementDryRun:
	case SettlementLocus:
		if c.Settlement.APIKey == "" {
			return fmt.Errorf("settlement.api_key is required in locus mode")
		}
	default:
		return fmt.Errorf("unknown settlement mode %q", c.Settlement.Mode)
	}
	if c.Settlement.Timeout <= 0 {
		return fmt.Errorf("settlement.timeout must be positive")
	}
	if err := c.Settlement.Wallets.validate(c.Settlement.Mode); err != nil {
		return err
	}
	if c.Oracle.SellerFloorRate <= 0 || c.Oracle.SellerFloorRate > 1 {
		return fmt.Errorf("oracle.seller_floor_rate must be in (0, 1], got %v", c.Oracle.SellerFloorRate)
	}
	return nil
}

func (w WalletsConfig) validate(mode string) error {
	wallets := []struct {
		key, value, placeholder string
	}{
		{"escrow", w.Escrow, PlaceholderEscrow},
		{"counterparty", w.Counterparty, PlaceholderCounterparty},
		{"originator", w.Originator, PlaceholderOriginator},
	}
	for _, wallet := range wallets {
		if wallet.value == "" {
			return fmt.Errorf("settlement.wallets.%s is required", wallet.key)
		}
		if mode == SettlementLocus && wallet.value == wallet.placeholder {
			return fmt.Errorf("settlement.wallets.%s must be a real address in locus mode", wallet.key)
		}
	}
	return nil
}
