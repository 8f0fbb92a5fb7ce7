package db

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ghaaf-labs/Activity-tracker-discord-bot/config"
	"github.com/ghaaf-labs/Activity-tracker-discord-bot/internal/model"
)

// Init opens the configured database and runs migrations.
func Init(cfg *config.DatabaseConfig, logger *zap.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel(cfg.LogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	}

	logger.Info("running database migrations", zap.String("driver", cfg.Driver))
	if err := Migrate(db); err != nil {
		return nil, err
	}

	if cfg.EnableRangeIndex && cfg.Driver == "postgres" {
		if err := applyRangeIndexDDL(db); err != nil {
			logger.Warn("failed to apply range index DDL, continuing without it", zap.Error(err))
		}
	}
	return db, nil
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Member{},
		&model.VoiceSession{},
		&model.PushSubscription{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

func dialectorFor(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is empty")
	}
	switch strings.ToLower(cfg.Driver) {
	case "postgres", "postgresql":
		return postgres.Open(cfg.DSN), nil
	case "sqlite", "sqlite3", "":
		return sqlite.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func logLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

// applyRangeIndexDDL adds a sanity check and a GiST index so overlap queries
// on (member, period) stay cheap on large Postgres tables.
func applyRangeIndexDDL(db *gorm.DB) error {
	ddls := []string{
		"CREATE EXTENSION IF NOT EXISTS btree_gist;",
		"ALTER TABLE voice_sessions " +
			"ADD CONSTRAINT voice_sessions_period_valid CHECK (started_at <= ended_at);",
		"CREATE INDEX IF NOT EXISTS idx_voice_sessions_period ON voice_sessions " +
			"USING GIST (member_id, tstzrange(started_at, ended_at, '[]'));",
	}

	var failed []string
	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			// Re-running against an existing schema fails on the constraint; keep going.
			failed = append(failed, fmt.Sprintf("%q: %v", ddl, err))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("DDL failed: %s", strings.Join(failed, "; "))
	}
	return nil
}
