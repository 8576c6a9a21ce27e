package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx pool for dsn and pings it. Accepted forms include
// postgres://, postgresql:// and SQLAlchemy-style driver suffixes such as
// postgresql+asyncpg://, which are stripped.
func Connect(ctx context.Context, dsn string, opts ...func(*pgxpool.Config)) (*pgxpool.Pool, error) {
	normalized := normalizeDSN(dsn)
	if normalized == "" {
		return nil, errors.New("postgres: database url is not set (DB_URL)")
	}

	cfg, err := pgxpool.ParseConfig(normalized)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	applyPoolDefaults(cfg)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}

// WithMaxConns overrides the pool size when n is positive.
func WithMaxConns(n int32) func(*pgxpool.Config) {
	return func(cfg *pgxpool.Config) {
		if n > 0 {
			cfg.MaxConns = n
		}
	}
}

// applyPoolDefaults fills settings the DSN and options left unset. The change
// feed pins one connection for LISTEN, so the pool never drops below four.
func applyPoolDefaults(cfg *pgxpool.Config) {
	if cfg.MaxConns < 4 {
		cfg.MaxConns = 4
	}
	durations := []struct {
		field *time.Duration
		def   time.Duration
	}{
		{&cfg.MaxConnIdleTime, 5 * time.Minute},
		{&cfg.MaxConnLifetime, time.Hour},
		{&cfg.HealthCheckPeriod, time.Minute},
	}
	for _, d := range durations {
		if *d.field == 0 {
			*d.field = d.def
		}
	}
}

var driverSuffixes = []string{"+asyncpg", "+pgx", "+psycopg2", "+psycopg"}

// normalizeDSN strips driver suffixes from the URL scheme.
func normalizeDSN(dsn string) string {
	s := strings.TrimSpace(dsn)
	scheme, rest, ok := strings.Cut(s, "://")
	if !ok {
		return s
	}
	for _, suffix := range driverSuffixes {
		scheme = strings.TrimSuffix(scheme, suffix)
	}
	return scheme + "://" + rest
}
