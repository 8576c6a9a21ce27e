package adapter

import (
	"context"
	"fmt"
	"sync"

	"github.com/AndreiCalugar/MyCommunity/internal/infrastructure/queue/port"

	"github.com/google/uuid"
)

// InlineQueue runs handlers synchronously inside Enqueue. It backs the
// in-memory deployment and tests, where no Redis is available. Scheduling
// options are ignored.
type InlineQueue struct {
	mu       sync.RWMutex
	handlers map[string]port.Handler
}

var (
	_ port.Client = (*InlineQueue)(nil)
	_ port.Server = (*InlineQueue)(nil)
)

func NewInlineQueue() *InlineQueue {
	return &InlineQueue{handlers: make(map[string]port.Handler)}
}

func (q *InlineQueue) Register(taskType string, h port.Handler) {
	q.mu.Lock()
	q.handlers[taskType] = h
	q.mu.Unlock()
}

// Enqueue runs the handler for t and returns its error.
func (q *InlineQueue) Enqueue(ctx context.Context, t port.Task, _ ...port.EnqueueOption) (string, error) {
	q.mu.RLock()
	h, ok := q.handlers[t.Type]
	q.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("inline queue: no handler for %q", t.Type)
	}
	if err := h(ctx, t); err != nil {
		return "", err
	}
	return uuid.NewString(), nil
}

func (q *InlineQueue) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (q *InlineQueue) Stop(context.Context) error { return nil }

func (q *InlineQueue) Close() error { return nil }
