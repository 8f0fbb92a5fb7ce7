package config

import (
	"fmt"
	"os"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Tracker    TrackerConfig    `yaml:"tracker"`
	Roster     RosterConfig     `yaml:"roster"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Log        LogConfig        `yaml:"log"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size      int `yaml:"size"`
	QueueSize int `yaml:"queue_size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key" env:"VOICESTATS_VAPID_PUBLIC_KEY"`
	PrivateKey string `yaml:"vapid_private_key" env:"VOICESTATS_VAPID_PRIVATE_KEY"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether both VAPID keys are present.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int           `yaml:"port" env:"VOICESTATS_PORT"`
	RateLimitPerSec float64       `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int           `yaml:"rate_limit_burst"`
	CacheTTLSeconds int           `yaml:"cache_ttl_seconds"`
	CacheTTL        time.Duration `yaml:"-"`
	IngestToken     string        `yaml:"ingest_token" env:"VOICESTATS_INGEST_TOKEN"`
}

// TrackerConfig controls how voice activity becomes intervals.
type TrackerConfig struct {
	// MinDurationSeconds is the shortest stay that gets persisted. Unset means 5.
	MinDurationSeconds *int           `yaml:"min_duration_seconds"`
	MinDuration        time.Duration  `yaml:"-"`
	TrackBots          bool           `yaml:"track_bots"`
	IgnoredMembers     []string       `yaml:"ignored_members"`
	IgnoredMemberIDs   []snowflake.ID `yaml:"-"`
	// Timezone is the zone whose midnights split days in reports.
	Timezone string         `yaml:"timezone" env:"VOICESTATS_TIMEZONE"`
	Location *time.Location `yaml:"-"`
}

// RosterConfig holds the configuration for the upstream "who is in voice" API.
type RosterConfig struct {
	Enabled               bool          `yaml:"enabled"`
	ResyncIntervalSeconds int           `yaml:"resync_interval_seconds"`
	ResyncInterval        time.Duration `yaml:"-"` // Ignored by YAML parser
	HTTPProxy             string        `yaml:"http_proxy"`
	Request               RosterRequest `yaml:"request"`
}

// RosterRequest defines the HTTP request for the roster snapshot.
type RosterRequest struct {
	URL      string            `yaml:"url" env:"VOICESTATS_ROSTER_URL"`
	Headers  map[string]string `yaml:"headers"`
	PageSize int               `yaml:"pageSize"`
	Payload  map[string]any    `yaml:"payload"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver" env:"VOICESTATS_DB_DRIVER"`
	DSN                    string `yaml:"dsn" env:"VOICESTATS_DSN"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogLevel               string `yaml:"log_level"`
	EnableRangeIndex       bool   `yaml:"enable_range_index"`
}

// LogConfig selects the application logger.
type LogConfig struct {
	Level       string `yaml:"level" env:"VOICESTATS_LOG_LEVEL"`
	Development bool   `yaml:"development"`
}

const defaultMinDurationSeconds = 5

// Load reads the configuration from the given path, then applies environment
// overrides and defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() error {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 60
	}
	cfg.Server.CacheTTL = time.Duration(cfg.Server.CacheTTLSeconds) * time.Second

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "stats.db"
	}

	minSeconds := defaultMinDurationSeconds
	if cfg.Tracker.MinDurationSeconds != nil {
		minSeconds = *cfg.Tracker.MinDurationSeconds
	}
	if minSeconds < 0 {
		return fmt.Errorf("tracker.min_duration_seconds must not be negative, got %d", minSeconds)
	}
	cfg.Tracker.MinDuration = time.Duration(minSeconds) * time.Second

	cfg.Tracker.IgnoredMemberIDs = cfg.Tracker.IgnoredMemberIDs[:0]
	for _, raw := range cfg.Tracker.IgnoredMembers {
		id, err := snowflake.ParseString(raw)
		if err != nil {
			return fmt.Errorf("tracker.ignored_members: invalid member ID %q: %w", raw, err)
		}
		cfg.Tracker.IgnoredMemberIDs = append(cfg.Tracker.IgnoredMemberIDs, id)
	}

	if cfg.Tracker.Timezone == "" {
		cfg.Tracker.Timezone = "UTC"
	}
	loc, err := time.LoadLocation(cfg.Tracker.Timezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone %q: %w", cfg.Tracker.Timezone, err)
	}
	cfg.Tracker.Location = loc

	if cfg.Roster.ResyncIntervalSeconds < 0 {
		cfg.Roster.ResyncIntervalSeconds = 0
	}
	cfg.Roster.ResyncInterval = time.Duration(cfg.Roster.ResyncIntervalSeconds) * time.Second
	if cfg.Roster.Request.PageSize <= 0 {
		cfg.Roster.Request.PageSize = 100
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		cfg.WorkerPool.Size = 1
	}
	if cfg.WorkerPool.QueueSize <= 0 {
		cfg.WorkerPool.QueueSize = 64 * cfg.WorkerPool.Size
	}
	return nil
}
