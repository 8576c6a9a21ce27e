package main

import (
	"context"
	"errors"
	"fmt"

	cacheAdapter "github.com/AndreiCalugar/MyCommunity/internal/infrastructure/cache/adapter"
	cacheport "github.com/AndreiCalugar/MyCommunity/internal/infrastructure/cache/port"
	feedAdapter "github.com/AndreiCalugar/MyCommunity/internal/infrastructure/changefeed/adapter"
	feedport "github.com/AndreiCalugar/MyCommunity/internal/infrastructure/changefeed/port"
	"github.com/AndreiCalugar/MyCommunity/internal/infrastructure/config"
	"github.com/AndreiCalugar/MyCommunity/internal/infrastructure/database"
	queueAdapter "github.com/AndreiCalugar/MyCommunity/internal/infrastructure/queue/adapter"
	qport "github.com/AndreiCalugar/MyCommunity/internal/infrastructure/queue/port"
	"github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/persistence/repository/adapter"
	repository "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/persistence/repository/port"

	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type closers []func() error

func (c *closers) add(fn func() error) { *c = append(*c, fn) }

// closeAll runs closers in reverse order of registration.
func (c closers) closeAll(l *zap.Logger) {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			l.Warn("close resource", zap.Error(err))
		}
	}
}

// store is the selected persistence backend.
type store struct {
	chat     repository.ChatRepository
	profiles repository.ProfileRepository
	pool     *pgxpool.Pool
	redis    *redis.Client
	ping     func(ctx context.Context) error
}

func openStore(ctx context.Context, cfg *config.Config, l *zap.Logger, cs *closers) (*store, error) {
	st := &store{ping: func(context.Context) error { return nil }}

	switch cfg.Database.Driver {
	case "postgres":
		var opts []func(*pgxpool.Config)
		if cfg.Database.MaxConns > 0 {
			opts = append(opts, database.WithMaxConns(cfg.Database.MaxConns))
		}
		pool, err := database.Connect(ctx, cfg.Database.URL, opts...)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		cs.add(func() error { pool.Close(); return nil })
		if cfg.Database.Migrate {
			if err := database.Migrate(ctx, pool); err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
			l.Info("schema migrated")
		}
		pg := adapter.NewPgChatRepository(pool)
		st.chat, st.profiles, st.pool = pg, pg, pool
		st.ping = pool.Ping
	case "sqlite":
		db, err := database.OpenSQLite(cfg.Database.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		cs.add(sqlDB.Close)
		repo, err := adapter.NewGormChatRepository(db)
		if err != nil {
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		st.chat, st.profiles = repo, repo
		st.ping = sqlDB.PingContext
	case "memory":
		repo := adapter.NewMemoryChatRepository()
		st.chat, st.profiles = repo, repo
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	if cfg.Redis.URL != "" {
		client, err := cacheAdapter.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		cs.add(client.Close)
		st.redis = client
	}
	return st, nil
}

// changeFeed pairs the feed relay subscribes to with the publisher writes go
// to. publisher is nil when the store emits changes itself.
type changeFeed struct {
	feed      feedport.Feed
	publisher feedport.Publisher
}

func openFeed(ctx context.Context, cfg *config.Config, st *store, l *zap.Logger, cs *closers) (changeFeed, error) {
	switch cfg.Feed.Driver {
	case "memory":
		f := feedAdapter.NewMemoryFeed()
		cs.add(f.Close)
		return changeFeed{feed: f, publisher: f}, nil
	case "postgres":
		if st.pool == nil {
			return changeFeed{}, errors.New("postgres feed needs the postgres store")
		}
		f := feedAdapter.NewPostgresFeed(st.pool, database.ChangeChannel, l.Named("pgfeed"))
		f.Start(ctx)
		cs.add(f.Close)
		return changeFeed{feed: f}, nil
	case "redis":
		if st.redis == nil {
			return changeFeed{}, errors.New("redis feed needs redis.url")
		}
		f := feedAdapter.NewRedisFeed(st.redis, cfg.Feed.Channel, l.Named("redisfeed"))
		if err := f.Start(ctx); err != nil {
			return changeFeed{}, err
		}
		cs.add(f.Close)
		return changeFeed{feed: f, publisher: f}, nil
	case "kafka":
		f, err := feedAdapter.NewKafkaFeed(feedAdapter.KafkaConfig{
			Brokers:   cfg.Kafka.Brokers,
			Topic:     cfg.Kafka.Topic,
			KeyColumn: "conversation_id",
		}, l.Named("kafkafeed"))
		if err != nil {
			return changeFeed{}, err
		}
		f.Start(ctx)
		cs.add(f.Close)
		return changeFeed{feed: f, publisher: f}, nil
	}
	return changeFeed{}, fmt.Errorf("unknown feed driver %q", cfg.Feed.Driver)
}

// decorateRepo guards the store with the circuit breaker and, unless the
// store emits changes itself, publishes message writes to the feed.
func decorateRepo(cfg *config.Config, st *store, feed changeFeed, l *zap.Logger) repository.ChatRepository {
	var repo repository.ChatRepository = adapter.NewBreakerChatRepository(st.chat, adapter.BreakerSettings{
		MaxFailures: cfg.Breaker.MaxFailures,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.Timeout,
	}, l.Named("breaker"))
	if feed.publisher != nil {
		repo = adapter.NewNotifyingChatRepository(repo, feed.publisher, l)
	}
	return repo
}

// cachedProfiles caches display data in Redis when configured, in process
// otherwise.
func cachedProfiles(cfg *config.Config, st *store, l *zap.Logger) repository.ProfileRepository {
	var c cacheport.Cache = cacheAdapter.NewMemoryCache()
	if st.redis != nil {
		c = cacheAdapter.NewRedisCache(st.redis, cfg.Redis.Prefix)
	}
	return adapter.NewCachedProfileRepository(st.profiles, c, cfg.Cache.ProfileTTL, l)
}

// openQueue uses asynq when Redis is configured and runs tasks inline
// otherwise.
func openQueue(cfg *config.Config, l *zap.Logger, cs *closers) (qport.Client, qport.Server, error) {
	if cfg.Redis.URL == "" {
		q := queueAdapter.NewInlineQueue()
		return q, q, nil
	}
	acfg := queueAdapter.AsynqConfig{
		RedisURL:    cfg.Redis.URL,
		Concurrency: cfg.Asynq.Concurrency,
		Queues:      cfg.Asynq.Queues,
	}
	client, err := queueAdapter.NewAsynqClient(acfg)
	if err != nil {
		return nil, nil, err
	}
	cs.add(client.Close)
	srv, err := queueAdapter.NewAsynqServer(acfg, l.Named("asynq"))
	if err != nil {
		return nil, nil, err
	}
	return client, srv, nil
}
