package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/AndreiCalugar/MyCommunity/internal/infrastructure/changefeed/port"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisFeed relays change events between nodes over a Redis pub/sub channel.
// Writers publish after each committed change; every node subscribes and fans
// out locally. go-redis re-subscribes on reconnect.
type RedisFeed struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
	hub     *hub

	pubsub *redis.PubSub
	done   chan struct{}
	once   sync.Once
}

func NewRedisFeed(client *redis.Client, channel string, logger *zap.Logger) *RedisFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisFeed{client: client, channel: channel, logger: logger, hub: newHub(), done: make(chan struct{})}
}

var (
	_ port.Feed      = (*RedisFeed)(nil)
	_ port.Publisher = (*RedisFeed)(nil)
)

// Start subscribes to the channel and launches the receive loop.
func (f *RedisFeed) Start(ctx context.Context) error {
	f.pubsub = f.client.Subscribe(ctx, f.channel)
	if _, err := f.pubsub.Receive(ctx); err != nil {
		_ = f.pubsub.Close()
		return fmt.Errorf("changefeed: redis subscribe: %w", err)
	}
	ch := f.pubsub.Channel()
	go func() {
		defer close(f.done)
		for msg := range ch {
			var e port.Event
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				f.logger.Warn("changefeed: undecodable redis message", zap.Error(err))
				continue
			}
			f.hub.dispatch(e)
		}
	}()
	return nil
}

func (f *RedisFeed) Publish(ctx context.Context, e port.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return f.client.Publish(ctx, f.channel, payload).Err()
}

func (f *RedisFeed) Subscribe(ctx context.Context, filter port.Filter, h port.Handler) (port.Subscription, error) {
	return f.hub.subscribe(ctx, filter, h)
}

func (f *RedisFeed) Close() error {
	var err error
	f.once.Do(func() {
		f.hub.close()
		if f.pubsub != nil {
			err = f.pubsub.Close()
			<-f.done
		}
	})
	return err
}
