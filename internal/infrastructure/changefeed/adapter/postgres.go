package adapter

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/AndreiCalugar/MyCommunity/internal/infrastructure/changefeed/port"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresFeed listens on a NOTIFY channel fed by table triggers and fans
// events out to local subscribers. The listening connection is re-established
// with exponential backoff.
type PostgresFeed struct {
	pool    *pgxpool.Pool
	channel string
	logger  *zap.Logger
	hub     *hub

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func NewPostgresFeed(pool *pgxpool.Pool, channel string, logger *zap.Logger) *PostgresFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresFeed{pool: pool, channel: channel, logger: logger, hub: newHub(), done: make(chan struct{})}
}

var _ port.Feed = (*PostgresFeed)(nil)

// Start launches the listen loop. It returns immediately.
func (f *PostgresFeed) Start(ctx context.Context) {
	ctx, f.cancel = context.WithCancel(ctx)
	go func() {
		defer close(f.done)
		bo := backoff.NewExponentialBackOff()
		bo.MaxElapsedTime = 0
		_ = backoff.RetryNotify(func() error {
			err := f.listen(ctx, bo)
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}, backoff.WithContext(bo, ctx), func(err error, wait time.Duration) {
			f.logger.Warn("changefeed: postgres listener lost", zap.Error(err), zap.Duration("retry_in", wait))
		})
	}()
}

func (f *PostgresFeed) listen(ctx context.Context, bo backoff.BackOff) error {
	conn, err := f.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{f.channel}.Sanitize()); err != nil {
		return err
	}
	bo.Reset()
	f.logger.Info("changefeed: listening", zap.String("channel", f.channel))

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			// Drop the connection rather than return it to the pool still listening.
			_ = conn.Conn().Close(context.Background())
			return err
		}
		var e port.Event
		if err := json.Unmarshal([]byte(n.Payload), &e); err != nil {
			f.logger.Warn("changefeed: undecodable notification", zap.Error(err))
			continue
		}
		f.hub.dispatch(e)
	}
}

func (f *PostgresFeed) Subscribe(ctx context.Context, filter port.Filter, h port.Handler) (port.Subscription, error) {
	return f.hub.subscribe(ctx, filter, h)
}

func (f *PostgresFeed) Close() error {
	f.once.Do(func() {
		f.hub.close()
		if f.cancel != nil {
			f.cancel()
			<-f.done
		}
	})
	return nil
}
