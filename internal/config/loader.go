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
// built-in defaults, applies PREDICTDUEL_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
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

// applyEnvOverrides reads well-known PREDICTDUEL_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "PREDICTDUEL_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "PREDICTDUEL_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "PREDICTDUEL_WALLET_KEY_PASSWORD")

	// ── Ledger ──
	setStringSlice(&cfg.Ledger.Endpoints, "PREDICTDUEL_LEDGER_ENDPOINTS")
	setDuration(&cfg.Ledger.RPCTimeout, "PREDICTDUEL_LEDGER_RPC_TIMEOUT")
	setDuration(&cfg.Ledger.ProbeTimeout, "PREDICTDUEL_LEDGER_PROBE_TIMEOUT")
	setDuration(&cfg.Ledger.SelectorTTL, "PREDICTDUEL_LEDGER_SELECTOR_TTL")

	// ── Executor ──
	setInt(&cfg.Executor.MaxAttempts, "PREDICTDUEL_EXECUTOR_MAX_ATTEMPTS")
	setDuration(&cfg.Executor.BaseDelay, "PREDICTDUEL_EXECUTOR_BASE_DELAY")
	setDuration(&cfg.Executor.MaxDelay, "PREDICTDUEL_EXECUTOR_MAX_DELAY")
	setDuration(&cfg.Executor.AttemptTimeout, "PREDICTDUEL_EXECUTOR_ATTEMPT_TIMEOUT")
	setInt(&cfg.Executor.DedupCapacity, "PREDICTDUEL_EXECUTOR_DEDUP_CAPACITY")
	setDuration(&cfg.Executor.DedupTTL, "PREDICTDUEL_EXECUTOR_DEDUP_TTL")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "PREDICTDUEL_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "PREDICTDUEL_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "PREDICTDUEL_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "PREDICTDUEL_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "PREDICTDUEL_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "PREDICTDUEL_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "PREDICTDUEL_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "PREDICTDUEL_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "PREDICTDUEL_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "PREDICTDUEL_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "PREDICTDUEL_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PREDICTDUEL_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PREDICTDUEL_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PREDICTDUEL_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PREDICTDUEL_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PREDICTDUEL_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.TTL, "PREDICTDUEL_REDIS_TTL")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "PREDICTDUEL_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "PREDICTDUEL_S3_REGION")
	setStr(&cfg.S3.Bucket, "PREDICTDUEL_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "PREDICTDUEL_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "PREDICTDUEL_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "PREDICTDUEL_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "PREDICTDUEL_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "PREDICTDUEL_ARCHIVE_INTERVAL")
	setInt(&cfg.Archive.RetentionDays, "PREDICTDUEL_ARCHIVE_RETENTION_DAYS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "PREDICTDUEL_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "PREDICTDUEL_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "PREDICTDUEL_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "PREDICTDUEL_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "PREDICTDUEL_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "PREDICTDUEL_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "PREDICTDUEL_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "PREDICTDUEL_MODE")
	setStr(&cfg.LogLevel, "PREDICTDUEL_LOG_LEVEL")
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
