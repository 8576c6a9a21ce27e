package adapter

import (
	"context"

	"github.com/AndreiCalugar/MyCommunity/internal/infrastructure/changefeed/port"
)

// MemoryFeed delivers published events to local subscribers synchronously.
// It serves single-process deployments and tests.
type MemoryFeed struct {
	hub *hub
}

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{hub: newHub()}
}

var (
	_ port.Feed      = (*MemoryFeed)(nil)
	_ port.Publisher = (*MemoryFeed)(nil)
)

func (f *MemoryFeed) Subscribe(ctx context.Context, filter port.Filter, h port.Handler) (port.Subscription, error) {
	return f.hub.subscribe(ctx, filter, h)
}

func (f *MemoryFeed) Publish(ctx context.Context, e port.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.hub.dispatch(e)
	return nil
}

// Subscribers reports the number of live subscriptions.
func (f *MemoryFeed) Subscribers() int { return f.hub.count() }

func (f *MemoryFeed) Close() error {
	f.hub.close()
	return nil
}
