package database

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func TestNormalizeDSN(t *testing.T) {
	cases := map[string]string{
		"":                                       "",
		"  postgres://u:p@h:5432/db  ":           "postgres://u:p@h:5432/db",
		"postgresql+asyncpg://u:p@h/db":          "postgresql://u:p@h/db",
		"postgres+asyncpg://u:p@h/db":            "postgres://u:p@h/db",
		"postgresql+pgx://u:p@h/db?sslmode=none": "postgresql://u:p@h/db?sslmode=none",
		"host=localhost dbname=chat":             "host=localhost dbname=chat",
	}
	for in, want := range cases {
		if got := normalizeDSN(in); got != want {
			t.Fatalf("normalizeDSN(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPoolDefaults(t *testing.T) {
	cfg := &pgxpool.Config{MaxConns: 2, MaxConnLifetime: 10 * time.Minute}
	WithMaxConns(0)(cfg)
	applyPoolDefaults(cfg)

	if cfg.MaxConns != 4 {
		t.Fatalf("expected pool floor of 4, got %d", cfg.MaxConns)
	}
	if cfg.MaxConnLifetime != 10*time.Minute {
		t.Fatalf("explicit lifetime overwritten: %v", cfg.MaxConnLifetime)
	}
	if cfg.MaxConnIdleTime != 5*time.Minute || cfg.HealthCheckPeriod != time.Minute {
		t.Fatalf("defaults not applied: idle=%v health=%v", cfg.MaxConnIdleTime, cfg.HealthCheckPeriod)
	}

	WithMaxConns(16)(cfg)
	applyPoolDefaults(cfg)
	if cfg.MaxConns != 16 {
		t.Fatalf("expected override to 16, got %d", cfg.MaxConns)
	}
}
