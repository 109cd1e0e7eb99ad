package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/lib/pq"
	"github.com/shieldline/siteapi/config"
)

const (
	defaultDBDriver      = "postgres"
	defaultPingTimeout   = 5 * time.Second
	defaultConnMaxIdle   = 30 * time.Second
	defaultConnMaxLife   = 30 * time.Minute
	defaultMaxIdleConns  = 5
	defaultMaxOpenConns  = 20
	defaultRetryAttempts = 3
	defaultRetryDelay    = 100 * time.Millisecond
)

// DB is a pooled Postgres handle that retries transient connection failures.
type DB struct {
	*sql.DB
	attempts  uint64
	baseDelay time.Duration
}

// New wraps an already opened pool.
func New(sqlDB *sql.DB, attempts int, baseDelay time.Duration) *DB {
	if attempts < 0 {
		attempts = 0
	}
	if baseDelay <= 0 {
		baseDelay = defaultRetryDelay
	}
	return &DB{DB: sqlDB, attempts: uint64(attempts), baseDelay: baseDelay}
}

// BuildURL returns the lib/pq connection URL for cfg.
func BuildURL(cfg config.Config) string {
	sslmode := "disable"
	if cfg.Database.UseSSL {
		sslmode = "require"
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", cfg.Database.Host, cfg.Database.Port),
		User:   url.UserPassword(cfg.Database.User, cfg.Database.Password),
		Path:   cfg.Database.DBName,
	}

	q := u.Query()
	q.Set("sslmode", sslmode)
	u.RawQuery = q.Encode()

	return u.String()
}

func Open(ctx context.Context, cfg config.Config) (*DB, error) {
	sqlDB, err := sql.Open(defaultDBDriver, BuildURL(cfg))
	if err != nil {
		return nil, err
	}

	dbCfg := cfg.Database
	sqlDB.SetConnMaxIdleTime(orDuration(dbCfg.ConnMaxIdleTime, defaultConnMaxIdle))
	sqlDB.SetConnMaxLifetime(orDuration(dbCfg.ConnMaxLifetime, defaultConnMaxLife))
	sqlDB.SetMaxIdleConns(orInt(dbCfg.MaxIdleConns, defaultMaxIdleConns))
	sqlDB.SetMaxOpenConns(orInt(dbCfg.MaxOpenConns, defaultMaxOpenConns))

	attempts := dbCfg.RetryAttempts
	if attempts == 0 {
		attempts = defaultRetryAttempts
	}
	db := New(sqlDB, attempts, dbCfg.RetryBaseDelay)

	err = db.Retry(ctx, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
		defer cancel()
		return sqlDB.PingContext(pingCtx)
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

func orDuration(value, def time.Duration) time.Duration {
	if value <= 0 {
		return def
	}
	return value
}

func orInt(value, def int) int {
	if value <= 0 {
		return def
	}
	return value
}
