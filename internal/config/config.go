// Package config defines the top-level configuration for the marketplace
// service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by NFTDEX_* environment variables.
type Config struct {
	Database  DatabaseConfig  `toml:"database"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Archive   ArchiveConfig   `toml:"archive"`
	Market    MarketConfig    `toml:"market"`
	Fees      FeesConfig      `toml:"fees"`
	Whitelist WhitelistConfig `toml:"whitelist"`
	Treasury  TreasuryConfig  `toml:"treasury"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls cold-storage archival of trades and audit entries.
type ArchiveConfig struct {
	Enabled       bool `toml:"enabled"`
	RetentionDays int  `toml:"retention_days"`
}

// MarketConfig holds the economic parameters of the marketplace.
type MarketConfig struct {
	// VaultAddress is the custody address that holds tokens listed in the
	// system market.
	VaultAddress string `toml:"vault_address"`

	// MintPrice is the minimum mint payment in wei, as a decimal string.
	MintPrice string `toml:"mint_price"`

	// BaseRate and PremiumRate are the per-mille deposit split shares
	// credited to the base pool and premium pool respectively.
	BaseRate    int64 `toml:"base_rate"`
	PremiumRate int64 `toml:"premium_rate"`
}

// PolicyConfig overrides one venue's fee schedule. Per-mille of the gross
// trade amount; platform plus pool must equal fee.
type PolicyConfig struct {
	FeePerMille      int64 `toml:"fee_per_mille"`
	PlatformPerMille int64 `toml:"platform_per_mille"`
	PoolPerMille     int64 `toml:"pool_per_mille"`
}

// FeesConfig holds optional per-venue fee schedule overrides. A venue whose
// FeePerMille is zero keeps the built-in reference schedule.
type FeesConfig struct {
	SystemSale  PolicyConfig `toml:"system_sale"`
	PeerTrade   PolicyConfig `toml:"peer_trade"`
	Marketplace PolicyConfig `toml:"marketplace"`
}

// WhitelistConfig controls the mint admission gate.
type WhitelistConfig struct {
	Enabled     bool      `toml:"enabled"`
	WindowStart time.Time `toml:"window_start"`
	WindowEnd   time.Time `toml:"window_end"`
	DefaultCap  int64     `toml:"default_cap"`
}

// TreasuryConfig holds the platform signing key. The platform fee share is
// routed to the address derived from this key.
type TreasuryConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`

	// RateLimit is the per-client request budget per RateLimitWindow.
	// Zero disables API-wide rate limiting.
	RateLimit       int      `toml:"rate_limit"`
	RateLimitWindow duration `toml:"rate_limit_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "nftdex",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "nftdex-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
		},
		Market: MarketConfig{
			MintPrice:   "10000000000000000", // 0.01 ether
			BaseRate:    200,
			PremiumRate: 200,
		},
		Whitelist: WhitelistConfig{
			Enabled:    false,
			DefaultCap: 3,
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   0,
			RateLimitWindow: duration{
				Duration: time.Minute,
			},
		},
		Notify: NotifyConfig{
			Events: []string{"trade", "pause", "liquidity"},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":  true,
	"archive": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, archive)", c.Mode))
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Database
	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 is only required when archival is enabled.
	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archive is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	// Market
	if c.Market.VaultAddress == "" {
		errs = append(errs, "market: vault_address must not be empty")
	}
	if c.Market.MintPrice == "" {
		errs = append(errs, "market: mint_price must not be empty")
	}
	if c.Market.BaseRate < 0 || c.Market.PremiumRate < 0 || c.Market.BaseRate+c.Market.PremiumRate > 1000 {
		errs = append(errs, fmt.Sprintf("market: base_rate %d + premium_rate %d must stay within one thousand per-mille", c.Market.BaseRate, c.Market.PremiumRate))
	}

	// Fees: each configured override must be internally consistent.
	for name, p := range map[string]PolicyConfig{
		"system_sale": c.Fees.SystemSale,
		"peer_trade":  c.Fees.PeerTrade,
		"marketplace": c.Fees.Marketplace,
	} {
		if p.FeePerMille == 0 {
			continue // keep the reference schedule
		}
		if p.FeePerMille < 0 || p.FeePerMille > 1000 || p.PlatformPerMille < 0 || p.PoolPerMille < 0 {
			errs = append(errs, fmt.Sprintf("fees: %s rates out of range", name))
		}
		if p.PlatformPerMille+p.PoolPerMille != p.FeePerMille {
			errs = append(errs, fmt.Sprintf("fees: %s platform + pool shares must equal fee_per_mille", name))
		}
	}

	// Whitelist
	if c.Whitelist.Enabled {
		if c.Whitelist.DefaultCap < 1 {
			errs = append(errs, "whitelist: default_cap must be >= 1 when enabled")
		}
		if !c.Whitelist.WindowStart.IsZero() && !c.Whitelist.WindowEnd.IsZero() &&
			!c.Whitelist.WindowEnd.After(c.Whitelist.WindowStart) {
			errs = append(errs, "whitelist: window_end must be after window_start")
		}
	}

	// Treasury: needed whenever a venue routes a platform share.
	if c.Treasury.PrivateKey == "" && c.Treasury.EncryptedKeyPath == "" {
		errs = append(errs, "treasury: either private_key or encrypted_key_path must be set")
	}
	if c.Treasury.EncryptedKeyPath != "" && c.Treasury.KeyPassword == "" {
		errs = append(errs, "treasury: key_password is required when encrypted_key_path is set")
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "server: rate_limit must be >= 0")
	}
	if c.Server.RateLimit > 0 && c.Server.RateLimitWindow.Duration <= 0 {
		errs = append(errs, "server: rate_limit_window must be positive when rate_limit is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
