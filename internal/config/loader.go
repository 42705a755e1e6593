package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies NFTDEX_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known NFTDEX_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Database ──
	setStr(&cfg.Database.DSN, "NFTDEX_DATABASE_DSN")
	setStr(&cfg.Database.Host, "NFTDEX_DATABASE_HOST")
	setInt(&cfg.Database.Port, "NFTDEX_DATABASE_PORT")
	setStr(&cfg.Database.Database, "NFTDEX_DATABASE_NAME")
	setStr(&cfg.Database.User, "NFTDEX_DATABASE_USER")
	setStr(&cfg.Database.Password, "NFTDEX_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "NFTDEX_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "NFTDEX_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "NFTDEX_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "NFTDEX_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "NFTDEX_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "NFTDEX_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "NFTDEX_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "NFTDEX_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "NFTDEX_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "NFTDEX_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "NFTDEX_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "NFTDEX_S3_REGION")
	setStr(&cfg.S3.Bucket, "NFTDEX_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "NFTDEX_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "NFTDEX_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "NFTDEX_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "NFTDEX_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "NFTDEX_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "NFTDEX_ARCHIVE_RETENTION_DAYS")

	// ── Market ──
	setStr(&cfg.Market.VaultAddress, "NFTDEX_MARKET_VAULT_ADDRESS")
	setStr(&cfg.Market.MintPrice, "NFTDEX_MARKET_MINT_PRICE")
	setInt64(&cfg.Market.BaseRate, "NFTDEX_MARKET_BASE_RATE")
	setInt64(&cfg.Market.PremiumRate, "NFTDEX_MARKET_PREMIUM_RATE")

	// ── Whitelist ──
	setBool(&cfg.Whitelist.Enabled, "NFTDEX_WHITELIST_ENABLED")
	setTime(&cfg.Whitelist.WindowStart, "NFTDEX_WHITELIST_WINDOW_START")
	setTime(&cfg.Whitelist.WindowEnd, "NFTDEX_WHITELIST_WINDOW_END")
	setInt64(&cfg.Whitelist.DefaultCap, "NFTDEX_WHITELIST_DEFAULT_CAP")

	// ── Treasury ──
	setStr(&cfg.Treasury.PrivateKey, "NFTDEX_TREASURY_PRIVATE_KEY")
	setStr(&cfg.Treasury.EncryptedKeyPath, "NFTDEX_TREASURY_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Treasury.KeyPassword, "NFTDEX_TREASURY_KEY_PASSWORD")

	// ── Server ──
	setInt(&cfg.Server.Port, "NFTDEX_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "NFTDEX_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "NFTDEX_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "NFTDEX_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "NFTDEX_SERVER_RATE_LIMIT_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "NFTDEX_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "NFTDEX_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "NFTDEX_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "NFTDEX_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "NFTDEX_MODE")
	setStr(&cfg.LogLevel, "NFTDEX_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setTime(dst *time.Time, key string) {
	if v := os.Getenv(key); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			*dst = t
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
