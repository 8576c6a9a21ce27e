package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/AndreiCalugar/MyCommunity/internal/infrastructure/changefeed/port"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaFeed publishes change events to a topic keyed by conversation so a
// conversation's events stay ordered within one partition. Each node reads
// the topic with its own consumer group and fans out locally.
type KafkaFeed struct {
	writer *kafka.Writer
	reader *kafka.Reader
	logger *zap.Logger
	hub    *hub

	keyColumn string

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// KafkaConfig holds the feed's broker settings. KeyColumn names the row column
// used as message key.
type KafkaConfig struct {
	Brokers   []string
	Topic     string
	KeyColumn string
}

func NewKafkaFeed(cfg KafkaConfig, logger *zap.Logger) (*KafkaFeed, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, fmt.Errorf("changefeed: kafka brokers and topic are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	keyColumn := cfg.KeyColumn
	if keyColumn == "" {
		keyColumn = "conversation_id"
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     "chat-relay-" + uuid.NewString(),
		StartOffset: kafka.LastOffset,
		MaxWait:     250 * time.Millisecond,
	})
	return &KafkaFeed{writer: w, reader: r, logger: logger, hub: newHub(), done: make(chan struct{}), keyColumn: keyColumn}, nil
}

var (
	_ port.Feed      = (*KafkaFeed)(nil)
	_ port.Publisher = (*KafkaFeed)(nil)
)

// Start launches the consume loop. Read errors back off exponentially.
func (f *KafkaFeed) Start(ctx context.Context) {
	ctx, f.cancel = context.WithCancel(ctx)
	go func() {
		defer close(f.done)
		bo := backoff.NewExponentialBackOff()
		bo.MaxElapsedTime = 0
		for {
			m, err := f.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				wait := bo.NextBackOff()
				f.logger.Warn("changefeed: kafka read", zap.Error(err), zap.Duration("retry_in", wait))
				select {
				case <-ctx.Done():
					return
				case <-time.After(wait):
				}
				continue
			}
			bo.Reset()
			var e port.Event
			if err := json.Unmarshal(m.Value, &e); err != nil {
				f.logger.Warn("changefeed: undecodable kafka message", zap.Error(err), zap.Int64("offset", m.Offset))
				continue
			}
			f.hub.dispatch(e)
		}
	}()
}

func (f *KafkaFeed) Publish(ctx context.Context, e port.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	msg := kafka.Message{Value: payload, Time: time.Now()}
	if key, ok := e.Row()[f.keyColumn]; ok && key != nil {
		msg.Key = []byte(fmt.Sprint(key))
	}
	return f.writer.WriteMessages(ctx, msg)
}

func (f *KafkaFeed) Subscribe(ctx context.Context, filter port.Filter, h port.Handler) (port.Subscription, error) {
	return f.hub.subscribe(ctx, filter, h)
}

func (f *KafkaFeed) Close() error {
	var err error
	f.once.Do(func() {
		f.hub.close()
		if f.cancel != nil {
			f.cancel()
			<-f.done
		}
		if rerr := f.reader.Close(); rerr != nil {
			err = rerr
		}
		if werr := f.writer.Close(); werr != nil && err == nil {
			err = werr
		}
	})
	return err
}
