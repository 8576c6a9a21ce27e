package adapter

import (
	"context"
	"errors"
	"sync"

	"github.com/AndreiCalugar/MyCommunity/internal/infrastructure/changefeed/port"

	"github.com/google/uuid"
)

// ErrFeedClosed is returned when subscribing to a closed feed.
var ErrFeedClosed = errors.New("changefeed: closed")

// hub is the in-process fan-out shared by every feed adapter: transports
// decode events and hand them to dispatch.
type hub struct {
	mu     sync.RWMutex
	subs   map[string]*hubSubscription
	closed bool
}

type hubSubscription struct {
	id      string
	filter  port.Filter
	handler port.Handler
	hub     *hub
	once    sync.Once
}

func newHub() *hub {
	return &hub{subs: make(map[string]*hubSubscription)}
}

func (h *hub) subscribe(_ context.Context, f port.Filter, fn port.Handler) (port.Subscription, error) {
	if fn == nil {
		return nil, errors.New("changefeed: nil handler")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrFeedClosed
	}
	s := &hubSubscription{id: uuid.NewString(), filter: f, handler: fn, hub: h}
	h.subs[s.id] = s
	return s, nil
}

func (h *hub) dispatch(e port.Event) int {
	h.mu.RLock()
	matched := make([]port.Handler, 0, len(h.subs))
	for _, s := range h.subs {
		if s.filter.Matches(e) {
			matched = append(matched, s.handler)
		}
	}
	h.mu.RUnlock()

	for _, fn := range matched {
		fn(e)
	}
	return len(matched)
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *hub) close() {
	h.mu.Lock()
	h.closed = true
	h.subs = make(map[string]*hubSubscription)
	h.mu.Unlock()
}

func (s *hubSubscription) Close() error {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s.id)
		s.hub.mu.Unlock()
	})
	return nil
}
