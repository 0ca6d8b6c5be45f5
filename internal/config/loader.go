package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load decodes the TOML file at path over Defaults, loads .env when present
// and applies DOCKSIDE_* overrides. An empty path skips the file. The result
// is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides overwrites fields whose DOCKSIDE_* variable is set and
// non-empty, so secrets can be injected at deploy time.
func applyEnvOverrides(cfg *Config) {
	// ── World ──
	setInt(&cfg.World.MinPosition, "DOCKSIDE_WORLD_MIN_POSITION")
	setInt(&cfg.World.MaxPosition, "DOCKSIDE_WORLD_MAX_POSITION")
	setDuration(&cfg.World.MinTimeToMove, "DOCKSIDE_WORLD_MIN_TIME_TO_MOVE")

	// ── Session ──
	setInt(&cfg.Session.MaxIDLength, "DOCKSIDE_SESSION_MAX_ID_LENGTH")
	setDuration(&cfg.Session.DedupTTL, "DOCKSIDE_SESSION_DEDUP_TTL")

	// ── Dock ──
	setStr(&cfg.Dock.ID, "DOCKSIDE_DOCK_ID")
	setBool(&cfg.Dock.Shared, "DOCKSIDE_DOCK_SHARED")
	setStr(&cfg.Dock.CatalogPath, "DOCKSIDE_DOCK_CATALOG_PATH")
	setFloat64(&cfg.Dock.PriceStep, "DOCKSIDE_DOCK_PRICE_STEP")
	setDuration(&cfg.Dock.LockTTL, "DOCKSIDE_DOCK_LOCK_TTL")
	setDuration(&cfg.Dock.LockWait, "DOCKSIDE_DOCK_LOCK_WAIT")

	// ── Storage ──
	setStr(&cfg.Storage.Driver, "DOCKSIDE_STORAGE_DRIVER")
	setStr(&cfg.Storage.Cache, "DOCKSIDE_STORAGE_CACHE")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "DOCKSIDE_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL")
	setStr(&cfg.Postgres.Host, "DOCKSIDE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "DOCKSIDE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "DOCKSIDE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "DOCKSIDE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "DOCKSIDE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "DOCKSIDE_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "DOCKSIDE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "DOCKSIDE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "DOCKSIDE_POSTGRES_RUN_MIGRATIONS")

	// ── SQLite ──
	setStr(&cfg.SQLite.Path, "DOCKSIDE_SQLITE_PATH")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "DOCKSIDE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "DOCKSIDE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "DOCKSIDE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "DOCKSIDE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "DOCKSIDE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "DOCKSIDE_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "DOCKSIDE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "DOCKSIDE_S3_REGION")
	setStr(&cfg.S3.Bucket, "DOCKSIDE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "DOCKSIDE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "DOCKSIDE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "DOCKSIDE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "DOCKSIDE_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "DOCKSIDE_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "DOCKSIDE_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "DOCKSIDE_ARCHIVE_INTERVAL")
	setStr(&cfg.Archive.Prefix, "DOCKSIDE_ARCHIVE_PREFIX")
	setInt(&cfg.Archive.ExpireDays, "DOCKSIDE_ARCHIVE_EXPIRE_DAYS")

	// ── Server ──
	setInt(&cfg.Server.Port, "DOCKSIDE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "DOCKSIDE_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "DOCKSIDE_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "DOCKSIDE_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "DOCKSIDE_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "DOCKSIDE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "DOCKSIDE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "DOCKSIDE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "DOCKSIDE_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "DOCKSIDE_MODE")
	setStr(&cfg.LogLevel, "DOCKSIDE_LOG_LEVEL")
}

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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var cleaned []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) > 0 {
		*dst = cleaned
	}
}
