package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AndreiCalugar/MyCommunity/internal/infrastructure/config"
)

func TestDefaultsWithMemoryDriver(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DATABASE_DRIVER", "memory")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" || cfg.HTTP.RequestTimeout != 3*time.Second {
		t.Fatalf("unexpected http config %+v", cfg.HTTP)
	}
	if cfg.Feed.Driver != "memory" || cfg.Feed.Channel != "chat_changes" {
		t.Fatalf("unexpected feed config %+v", cfg.Feed)
	}
	if cfg.Links.WebBaseURL != "https://mycommunity.app" || cfg.Cache.ProfileTTL != 5*time.Minute {
		t.Fatalf("unexpected defaults %+v %+v", cfg.Links, cfg.Cache)
	}
}

func TestLegacyEnvNames(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DB_URL", "postgres://u:p@localhost:5432/app")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("ASYNQ_QUEUES", "chat=3,default=1")
	t.Setenv("FEED_DRIVER", "redis")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.URL != "postgres://u:p@localhost:5432/app" {
		t.Fatalf("unexpected database config %+v", cfg.Database)
	}
	if cfg.Redis.URL != "redis://localhost:6379/0" || cfg.Asynq.Queues != "chat=3,default=1" {
		t.Fatalf("unexpected redis/asynq config %+v %+v", cfg.Redis, cfg.Asynq)
	}
}

func TestConfigFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
database:
  driver: sqlite
  sqlite_path: /tmp/chat.db
feed:
  driver: kafka
kafka:
  brokers: ["k1:9092", "k2:9092"]
ratelimit:
  burst: 3
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.SQLitePath != "/tmp/chat.db" {
		t.Fatalf("unexpected database config %+v", cfg.Database)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.RateLimit.Burst != 3 {
		t.Fatalf("unexpected kafka/ratelimit config %+v %+v", cfg.Kafka, cfg.RateLimit)
	}
}

func TestValidation(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DB_URL", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("FEED_DRIVER", "smoke-signals")

	_, err := config.Load("")
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"database.url", "smoke-signals"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q should mention %q", err, want)
		}
	}
}
