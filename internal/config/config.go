// Package config defines the dockside configuration, its defaults and
// validation.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration. Fields come from a TOML file and are
// then overridden by DOCKSIDE_* environment variables.
type Config struct {
	World    WorldConfig    `toml:"world"`
	Session  SessionConfig  `toml:"session"`
	Dock     DockConfig     `toml:"dock"`
	Storage  StorageConfig  `toml:"storage"`
	Postgres PostgresConfig `toml:"postgres"`
	SQLite   SQLiteConfig   `toml:"sqlite"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// WorldConfig bounds the one-dimensional world and paces movement.
type WorldConfig struct {
	MinPosition   int      `toml:"min_position"`
	MaxPosition   int      `toml:"max_position"`
	MinTimeToMove duration `toml:"min_time_to_move"`
}

// SessionConfig governs login and command replay.
type SessionConfig struct {
	MaxIDLength int `toml:"max_id_length"`
	// DedupTTL is how long an X-Command-ID result is replayed. Zero disables.
	DedupTTL duration `toml:"dedup_ttl"`
}

// DockConfig describes the trading dock.
type DockConfig struct {
	ID     string `toml:"id"`
	Shared bool   `toml:"shared"`
	// CatalogPath points at a YAML item catalog; empty uses the built-in one.
	CatalogPath string   `toml:"catalog_path"`
	PriceStep   float64  `toml:"price_step"`
	LockTTL     duration `toml:"lock_ttl"`
	LockWait    duration `toml:"lock_wait"`
}

// StorageConfig selects the persistence and cache backends.
type StorageConfig struct {
	// Driver is one of memory, postgres, sqlite.
	Driver string `toml:"driver"`
	// Cache is memory or redis.
	Cache string `toml:"cache"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
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

// SQLiteConfig holds the embedded database location.
type SQLiteConfig struct {
	Path string `toml:"path"`
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

// ArchiveConfig controls moving old trades and audit rows to S3.
type ArchiveConfig struct {
	// Enabled runs the archiver periodically in server mode.
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
	Prefix        string   `toml:"prefix"`
	// ExpireDays removes archive objects older than this many days. Zero
	// keeps them forever.
	ExpireDays int `toml:"expire_days"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey is a plain key or a bcrypt hash of it. Empty disables auth.
	APIKey       string   `toml:"api_key"`
	RateLimit    int      `toml:"rate_limit"`
	RateWindow   duration `toml:"rate_window"`
	ReadTimeout  duration `toml:"read_timeout"`
	WriteTimeout duration `toml:"write_timeout"`
}

// NotifyConfig holds the operator alert channels.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration lets TOML carry Go duration strings such as "2s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the stock configuration: a [-19, 19] world with a two
// second move cooldown, one shared in-memory dock and the API on :8000.
func Defaults() Config {
	return Config{
		World: WorldConfig{
			MinPosition:   -19,
			MaxPosition:   19,
			MinTimeToMove: duration{2 * time.Second},
		},
		Session: SessionConfig{
			MaxIDLength: 20,
			DedupTTL:    duration{5 * time.Minute},
		},
		Dock: DockConfig{
			ID:        "harbor",
			Shared:    true,
			PriceStep: 0.05,
			LockTTL:   duration{2 * time.Second},
			LockWait:  duration{time.Second},
		},
		Storage: StorageConfig{
			Driver: "memory",
			Cache:  "memory",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "dockside",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		SQLite: SQLiteConfig{
			Path: "dockside.db",
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "dockside-archive",
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			RetentionDays: 90,
			Interval:      duration{24 * time.Hour},
			Prefix:        "archive",
		},
		Server: ServerConfig{
			Port:         8000,
			CORSOrigins:  []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:    120,
			RateWindow:   duration{time.Minute},
			ReadTimeout:  duration{15 * time.Second},
			WriteTimeout: duration{30 * time.Second},
		},
		Notify: NotifyConfig{
			Events: []string{"stock_exhausted", "price_limit", "error"},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"server":  true,
	"archive": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validDrivers = map[string]bool{
	"memory":   true,
	"postgres": true,
	"sqlite":   true,
}

var validCaches = map[string]bool{
	"memory": true,
	"redis":  true,
}

// Validate checks the whole configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, archive)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.World.MinPosition > 0 || c.World.MaxPosition < 0 {
		errs = append(errs, fmt.Sprintf("world: [%d, %d] must contain the start position 0",
			c.World.MinPosition, c.World.MaxPosition))
	}
	if c.World.MinTimeToMove.Duration < 0 {
		errs = append(errs, "world: min_time_to_move must be >= 0")
	}

	if c.Session.MaxIDLength < 1 {
		errs = append(errs, "session: max_id_length must be >= 1")
	}
	if c.Session.DedupTTL.Duration < 0 {
		errs = append(errs, "session: dedup_ttl must be >= 0")
	}

	if strings.TrimSpace(c.Dock.ID) == "" {
		errs = append(errs, "dock: id must not be empty")
	}
	if c.Dock.PriceStep <= 0 || c.Dock.PriceStep >= 1 {
		errs = append(errs, fmt.Sprintf("dock: price_step must be in (0, 1), got %g", c.Dock.PriceStep))
	}
	if c.Dock.LockTTL.Duration <= 0 {
		errs = append(errs, "dock: lock_ttl must be > 0")
	}
	if c.Dock.LockWait.Duration < 0 {
		errs = append(errs, "dock: lock_wait must be >= 0")
	}

	driver := strings.ToLower(c.Storage.Driver)
	if !validDrivers[driver] {
		errs = append(errs, fmt.Sprintf("storage: unknown driver %q (valid: memory, postgres, sqlite)", c.Storage.Driver))
	}
	if !validCaches[strings.ToLower(c.Storage.Cache)] {
		errs = append(errs, fmt.Sprintf("storage: unknown cache %q (valid: memory, redis)", c.Storage.Cache))
	}

	if driver == "postgres" {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
	}
	if driver == "sqlite" && strings.TrimSpace(c.SQLite.Path) == "" {
		errs = append(errs, "sqlite: path must not be empty")
	}

	if strings.EqualFold(c.Storage.Cache, "redis") && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}

	needsS3 := c.Archive.Enabled || strings.EqualFold(c.Mode, "archive")
	if needsS3 {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty for archiving")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty for archiving")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
		if driver == "memory" {
			errs = append(errs, "archive: requires a persistent storage driver")
		}
	}
	if c.Archive.ExpireDays < 0 {
		errs = append(errs, "archive: expire_days must be >= 0")
	}
	if c.Archive.Enabled && c.Archive.Interval.Duration <= 0 {
		errs = append(errs, "archive: interval must be > 0")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "server: rate_limit must be >= 0")
	}
	if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
		errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
	}

	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ArchiveExpiry returns the instant before which archive objects are removed,
// and false when archives never expire.
func (c *Config) ArchiveExpiry(now time.Time) (time.Time, bool) {
	if c.Archive.ExpireDays <= 0 {
		return time.Time{}, false
	}
	return now.AddDate(0, 0, -c.Archive.ExpireDays), true
}

// ArchiveCutoff returns the instant before which rows are archived.
func (c *Config) ArchiveCutoff(now time.Time) time.Time {
	return now.AddDate(0, 0, -c.Archive.RetentionDays)
}
