// Package config loads service settings from defaults, an optional config
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// Driver is one of postgres, sqlite or memory.
	Driver     string `mapstructure:"driver"`
	URL        string `mapstructure:"url"`
	SQLitePath string `mapstructure:"sqlite_path"`
	Migrate    bool   `mapstructure:"migrate"`
	MaxConns   int32  `mapstructure:"max_conns"`
}

type RedisConfig struct {
	URL    string `mapstructure:"url"`
	Prefix string `mapstructure:"prefix"`
}

type FeedConfig struct {
	// Driver is one of memory, postgres, redis or kafka.
	Driver  string `mapstructure:"driver"`
	Channel string `mapstructure:"channel"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type AsynqConfig struct {
	Concurrency int    `mapstructure:"concurrency"`
	Queues      string `mapstructure:"queues"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	// AllowUserHeader accepts X-User-ID when no token is presented.
	AllowUserHeader bool `mapstructure:"allow_user_header"`
}

type LogConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

type RateLimitConfig struct {
	MessagesPerSecond float64 `mapstructure:"messages_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type CacheConfig struct {
	ProfileTTL time.Duration `mapstructure:"profile_ttl"`
}

type BreakerConfig struct {
	MaxFailures uint32        `mapstructure:"max_failures"`
	Interval    time.Duration `mapstructure:"interval"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type LinksConfig struct {
	WebBaseURL string `mapstructure:"web_base_url"`
	AppScheme  string `mapstructure:"app_scheme"`
}

type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Asynq     AsynqConfig     `mapstructure:"asynq"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Log       LogConfig       `mapstructure:"log"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	Links     LinksConfig     `mapstructure:"links"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.request_timeout", 3*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.url", "")
	v.SetDefault("database.sqlite_path", "mycommunity.db")
	v.SetDefault("database.migrate", false)
	v.SetDefault("database.max_conns", 0)
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.prefix", "mycommunity:")
	v.SetDefault("feed.driver", "memory")
	v.SetDefault("feed.channel", "chat_changes")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "chat.changes")
	v.SetDefault("asynq.concurrency", 10)
	v.SetDefault("asynq.queues", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.allow_user_header", false)
	v.SetDefault("log.development", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("ratelimit.messages_per_second", 5.0)
	v.SetDefault("ratelimit.burst", 10)
	v.SetDefault("cache.profile_ttl", 5*time.Minute)
	v.SetDefault("breaker.max_failures", 5)
	v.SetDefault("breaker.interval", time.Minute)
	v.SetDefault("breaker.timeout", 10*time.Second)
	v.SetDefault("links.web_base_url", "https://mycommunity.app")
	v.SetDefault("links.app_scheme", "mycommunityapp")
}

// Load reads configuration. path may be empty, in which case CONFIG_FILE is
// consulted; with neither set only defaults and the environment apply.
// Nested keys map to env vars with dots replaced by underscores
// (DATABASE_DRIVER); DB_URL, REDIS_URL, ASYNQ_CONCURRENCY and ASYNQ_QUEUES
// are also honored.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("database.url", "DATABASE_URL", "DB_URL")
	_ = v.BindEnv("redis.url", "REDIS_URL")
	_ = v.BindEnv("asynq.concurrency", "ASYNQ_CONCURRENCY")
	_ = v.BindEnv("asynq.queues", "ASYNQ_QUEUES")

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks driver names and the settings each driver needs.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "postgres":
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database.url (DB_URL) is required for the postgres driver"))
		}
	case "sqlite", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown database.driver %q", c.Database.Driver))
	}

	switch c.Feed.Driver {
	case "memory":
	case "postgres":
		if c.Database.Driver != "postgres" {
			errs = append(errs, errors.New("feed.driver postgres needs database.driver postgres"))
		}
	case "redis":
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis.url (REDIS_URL) is required for the redis feed"))
		}
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("kafka.brokers is required for the kafka feed"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown feed.driver %q", c.Feed.Driver))
	}

	if c.RateLimit.MessagesPerSecond < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("ratelimit values must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
