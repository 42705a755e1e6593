package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns Defaults() patched to pass Validate().
func validConfig() Config {
	cfg := Defaults()
	cfg.Market.VaultAddress = "0x00000000000000000000000000000000000000e1"
	cfg.Treasury.PrivateKey = "0000000000000000000000000000000000000000000000000000000000000001"
	return cfg
}

func TestValidateAcceptsPatchedDefaults(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "bogus"
	cfg.Server.Port = 0
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "server: port")
	assert.Contains(t, err.Error(), "redis: addr")
}

func TestValidateTreasuryRequired(t *testing.T) {
	cfg := validConfig()
	cfg.Treasury.PrivateKey = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "treasury")

	cfg.Treasury.EncryptedKeyPath = "/keys/treasury.json"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key_password")

	cfg.Treasury.KeyPassword = "secret"
	assert.NoError(t, cfg.Validate())
}

func TestValidateS3OnlyWhenArchiveEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.S3 = S3Config{}
	assert.NoError(t, cfg.Validate())

	cfg.Archive.Enabled = true
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3: endpoint")
	assert.Contains(t, err.Error(), "s3: bucket")
}

func TestValidateFeeOverrides(t *testing.T) {
	cfg := validConfig()

	// Zero FeePerMille keeps the reference schedule and is always valid.
	cfg.Fees.PeerTrade = PolicyConfig{FeePerMille: 0, PlatformPerMille: 99}
	assert.NoError(t, cfg.Validate())

	cfg.Fees.PeerTrade = PolicyConfig{FeePerMille: 50, PlatformPerMille: 10, PoolPerMille: 30}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "peer_trade")

	cfg.Fees.PeerTrade = PolicyConfig{FeePerMille: 50, PlatformPerMille: 10, PoolPerMille: 40}
	assert.NoError(t, cfg.Validate())
}

func TestValidateWhitelistWindow(t *testing.T) {
	cfg := validConfig()
	cfg.Whitelist.Enabled = true
	cfg.Whitelist.DefaultCap = 3
	cfg.Whitelist.WindowStart = time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)
	cfg.Whitelist.WindowEnd = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "window_end")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
mode = "archive"
log_level = "debug"

[database]
host = "db.internal"
port = 5433

[market]
vault_address = "0x00000000000000000000000000000000000000e1"
mint_price = "5000000000000000"

[server]
rate_limit = 100
rate_limit_window = "30s"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "archive", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "5000000000000000", cfg.Market.MintPrice)
	assert.Equal(t, 100, cfg.Server.RateLimit)
	assert.Equal(t, 30*time.Second, cfg.Server.RateLimitWindow.Duration)

	// Untouched sections keep their defaults.
	assert.Equal(t, "nftdex", cfg.Database.Database)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, int64(200), cfg.Market.BaseRate)
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`mode = "server"`), 0o600))

	t.Setenv("NFTDEX_DATABASE_PASSWORD", "env-secret")
	t.Setenv("NFTDEX_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("NFTDEX_ARCHIVE_ENABLED", "true")
	t.Setenv("NFTDEX_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("NFTDEX_MARKET_BASE_RATE", "150")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.Database.Password)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.True(t, cfg.Archive.Enabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, int64(150), cfg.Market.BaseRate)
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Password = "db-pass"
	cfg.Redis.Password = "redis-pass"
	cfg.S3.SecretKey = "s3-secret"
	cfg.Server.APIKey = "api-key"
	cfg.Notify.TelegramToken = "tg-token"

	red := RedactedConfig(&cfg)
	assert.Equal(t, "***", red.Database.Password)
	assert.Equal(t, "***", red.Redis.Password)
	assert.Equal(t, "***", red.S3.SecretKey)
	assert.Equal(t, "***", red.Server.APIKey)
	assert.Equal(t, "***", red.Notify.TelegramToken)
	assert.Equal(t, "***", red.Treasury.PrivateKey)

	// Empty secrets stay empty, non-secret fields survive.
	assert.Empty(t, red.Database.DSN)
	assert.Equal(t, cfg.Database.Host, red.Database.Host)
	assert.Equal(t, cfg.Server.Port, red.Server.Port)

	// The original is untouched.
	assert.Equal(t, "db-pass", cfg.Database.Password)
}
