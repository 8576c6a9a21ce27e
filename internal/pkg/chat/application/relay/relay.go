// Package relay turns store change events into per-conversation message
// changes for live screens.
//
// Every subscription owns a bounded buffer drained by a single goroutine, so
// callbacks observe changes in arrival order and a slow consumer never blocks
// the feed. When the buffer is full new changes are dropped; delivery is
// best-effort and clients re-fetch history on reconnect.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/AndreiCalugar/MyCommunity/internal/infrastructure/changefeed/port"
	chat "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/domain"
	repository "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/persistence/repository/port"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MessagesTable is the table watched by the relay.
const MessagesTable = "messages"

const (
	defaultBuffer = 64
	profileLookup = 2 * time.Second
)

type ChangeKind string

const (
	Inserted ChangeKind = "inserted"
	Deleted  ChangeKind = "deleted"
)

// Change is one visible change to a conversation's history. Message is nil
// only for hard deletes, where just the id is known.
type Change struct {
	Kind           ChangeKind    `json:"kind"`
	ConversationID string        `json:"conversation_id"`
	MessageID      string        `json:"message_id"`
	Message        *chat.Message `json:"message,omitempty"`
}

// Relay subscribes to the change feed on behalf of live conversation views.
type Relay struct {
	feed     port.Feed
	profiles repository.ProfileRepository
	logger   *zap.Logger
	buffer   int

	// OnDrop, when set, is called for every change dropped on overflow.
	OnDrop func(conversationID string)
}

func New(feed port.Feed, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{feed: feed, logger: logger, buffer: defaultBuffer}
}

// WithBuffer sets the per-subscription buffer size.
func (r *Relay) WithBuffer(n int) *Relay {
	if n > 0 {
		r.buffer = n
	}
	return r
}

// WithProfiles attaches the author profile to inserted messages, falling
// back to the unknown-user placeholder when the lookup fails.
func (r *Relay) WithProfiles(p repository.ProfileRepository) *Relay {
	r.profiles = p
	return r
}

// Subscription is a live registration for one conversation.
type Subscription struct {
	ID             string
	ConversationID string

	events  chan port.Event
	done    chan struct{}
	once    sync.Once
	feedSub port.Subscription
}

// Subscribe starts delivering changes of conversationID to onChange until
// Unsubscribe is called. onChange runs on the subscription's own goroutine.
func (r *Relay) Subscribe(ctx context.Context, conversationID string, onChange func(Change)) (*Subscription, error) {
	if conversationID == "" {
		return nil, errors.New("relay: conversation id is required")
	}
	if onChange == nil {
		return nil, errors.New("relay: nil change handler")
	}

	sub := &Subscription{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		events:         make(chan port.Event, r.buffer),
		done:           make(chan struct{}),
	}
	filter := port.Filter{Table: MessagesTable, Column: "conversation_id", Value: conversationID}
	fs, err := r.feed.Subscribe(ctx, filter, func(e port.Event) { r.enqueue(sub, e) })
	if err != nil {
		return nil, err
	}
	sub.feedSub = fs

	go r.drain(sub, onChange)
	return sub, nil
}

// Unsubscribe stops delivery. It is safe to call with nil, more than once, or
// after the feed was closed.
func (r *Relay) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	sub.once.Do(func() {
		close(sub.done)
		if sub.feedSub != nil {
			if err := sub.feedSub.Close(); err != nil {
				r.logger.Debug("relay: feed unsubscribe", zap.String("conversation_id", sub.ConversationID), zap.Error(err))
			}
		}
	})
}

func (r *Relay) enqueue(sub *Subscription, e port.Event) {
	select {
	case <-sub.done:
		return
	default:
	}
	select {
	case sub.events <- e:
	default:
		r.logger.Warn("relay: subscriber buffer full, dropping change",
			zap.String("conversation_id", sub.ConversationID),
			zap.String("subscription_id", sub.ID))
		if r.OnDrop != nil {
			r.OnDrop(sub.ConversationID)
		}
	}
}

func (r *Relay) drain(sub *Subscription, onChange func(Change)) {
	for {
		select {
		case <-sub.done:
			return
		case e := <-sub.events:
			change, ok := r.decode(e)
			if !ok {
				continue
			}
			if change.Kind == Inserted {
				r.attachAuthor(change.Message)
			}
			// A change queued before Unsubscribe must not be delivered after it.
			select {
			case <-sub.done:
				return
			default:
			}
			onChange(change)
		}
	}
}

// attachAuthor runs on the subscription goroutine so a slow profile store
// only delays that subscriber.
func (r *Relay) attachAuthor(m *chat.Message) {
	if r.profiles == nil || m == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), profileLookup)
	defer cancel()
	profiles, err := r.profiles.FindProfiles(ctx, []string{m.UserID})
	if err != nil {
		r.logger.Warn("relay: author profile lookup failed",
			zap.String("conversation_id", m.ConversationID),
			zap.String("user_id", m.UserID),
			zap.Error(err))
	}
	m.Author = chat.ProfileOrUnknown(profiles, m.UserID)
}

// decode maps a row event to a Change. Updates other than soft deletes are
// not visible to readers and are skipped.
func (r *Relay) decode(e port.Event) (Change, bool) {
	switch e.Type {
	case port.EventInsert:
		msg, err := decodeMessage(e.New)
		if err != nil {
			r.logger.Warn("relay: undecodable insert", zap.Error(err))
			return Change{}, false
		}
		return Change{Kind: Inserted, ConversationID: msg.ConversationID, MessageID: msg.ID, Message: msg}, true
	case port.EventUpdate:
		if e.New["deleted_at"] == nil {
			return Change{}, false
		}
		msg, err := decodeMessage(e.New)
		if err != nil {
			r.logger.Warn("relay: undecodable update", zap.Error(err))
			return Change{}, false
		}
		return Change{Kind: Deleted, ConversationID: msg.ConversationID, MessageID: msg.ID, Message: msg}, true
	case port.EventDelete:
		id, _ := e.Old["id"].(string)
		conv, _ := e.Old["conversation_id"].(string)
		if id == "" {
			return Change{}, false
		}
		return Change{Kind: Deleted, ConversationID: conv, MessageID: id}, true
	}
	return Change{}, false
}

func decodeMessage(row map[string]any) (*chat.Message, error) {
	if row == nil {
		return nil, errors.New("relay: empty row image")
	}
	b, err := json.Marshal(row)
	if err != nil {
		return nil, err
	}
	var m chat.Message
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	if m.ID == "" {
		return nil, errors.New("relay: row without id")
	}
	return &m, nil
}
