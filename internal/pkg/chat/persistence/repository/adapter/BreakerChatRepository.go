package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	chat "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/domain"
	repository "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/persistence/repository/port"
	"github.com/AndreiCalugar/MyCommunity/internal/pkg/query"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerSettings tunes the store circuit breaker.
type BreakerSettings struct {
	MaxFailures uint32
	Interval    time.Duration
	Timeout     time.Duration
}

// BreakerChatRepository fails fast with chat.ErrUnavailable while the store
// keeps failing. Domain outcomes (not found, not authorized) and caller
// cancellations do not count as failures.
type BreakerChatRepository struct {
	inner repository.ChatRepository
	cb    *gobreaker.CircuitBreaker
}

func NewBreakerChatRepository(inner repository.ChatRepository, s BreakerSettings, logger *zap.Logger) *BreakerChatRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	if s.MaxFailures == 0 {
		s.MaxFailures = 5
	}
	if s.Timeout == 0 {
		s.Timeout = 10 * time.Second
	}
	st := gobreaker.Settings{
		Name:        "chat-store",
		MaxRequests: 1,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("circuit breaker state", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, chat.ErrNotFound) ||
				errors.Is(err, chat.ErrNotAuthorized) ||
				errors.Is(err, context.Canceled)
		},
	}
	return &BreakerChatRepository{inner: inner, cb: gobreaker.NewCircuitBreaker(st)}
}

var _ repository.ChatRepository = (*BreakerChatRepository)(nil)

// State exposes the breaker state for health reporting.
func (r *BreakerChatRepository) State() gobreaker.State { return r.cb.State() }

func guard[T any](r *BreakerChatRepository, fn func() (T, error)) (T, error) {
	var zero T
	v, err := r.cb.Execute(func() (interface{}, error) { return fn() })
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return zero, fmt.Errorf("%w: %w", chat.ErrUnavailable, err)
	}
	if err != nil {
		return zero, err
	}
	out, _ := v.(T)
	return out, nil
}

func (r *BreakerChatRepository) GetOrCreateDirectConversation(ctx context.Context, userA, userB string) (string, error) {
	return guard(r, func() (string, error) { return r.inner.GetOrCreateDirectConversation(ctx, userA, userB) })
}

func (r *BreakerChatRepository) GetOrCreateCommunityConversation(ctx context.Context, communityID string) (string, error) {
	return guard(r, func() (string, error) { return r.inner.GetOrCreateCommunityConversation(ctx, communityID) })
}

func (r *BreakerChatRepository) GetConversation(ctx context.Context, id string) (*chat.Conversation, error) {
	return guard(r, func() (*chat.Conversation, error) { return r.inner.GetConversation(ctx, id) })
}

func (r *BreakerChatRepository) FindConversations(ctx context.Context, q query.Query) ([]chat.Conversation, error) {
	return guard(r, func() ([]chat.Conversation, error) { return r.inner.FindConversations(ctx, q) })
}

func (r *BreakerChatRepository) AddParticipant(ctx context.Context, p chat.Participant) error {
	_, err := guard(r, func() (struct{}, error) { return struct{}{}, r.inner.AddParticipant(ctx, p) })
	return err
}

func (r *BreakerChatRepository) FindParticipants(ctx context.Context, q query.Query) ([]chat.Participant, error) {
	return guard(r, func() ([]chat.Participant, error) { return r.inner.FindParticipants(ctx, q) })
}

func (r *BreakerChatRepository) UpdateParticipantReadState(ctx context.Context, conversationID, userID string, readAt time.Time) (bool, error) {
	return guard(r, func() (bool, error) {
		return r.inner.UpdateParticipantReadState(ctx, conversationID, userID, readAt)
	})
}

func (r *BreakerChatRepository) SetMuted(ctx context.Context, conversationID, userID string, muted bool) (bool, error) {
	return guard(r, func() (bool, error) { return r.inner.SetMuted(ctx, conversationID, userID, muted) })
}

func (r *BreakerChatRepository) SaveMessage(ctx context.Context, m chat.Message) (chat.Message, error) {
	return guard(r, func() (chat.Message, error) { return r.inner.SaveMessage(ctx, m) })
}

func (r *BreakerChatRepository) FindMessages(ctx context.Context, q query.Query) ([]chat.Message, error) {
	return guard(r, func() ([]chat.Message, error) { return r.inner.FindMessages(ctx, q) })
}

func (r *BreakerChatRepository) CountMessages(ctx context.Context, q query.Query) (int, error) {
	return guard(r, func() (int, error) { return r.inner.CountMessages(ctx, q) })
}

func (r *BreakerChatRepository) SoftDeleteMessage(ctx context.Context, messageID string, at time.Time) error {
	_, err := guard(r, func() (struct{}, error) { return struct{}{}, r.inner.SoftDeleteMessage(ctx, messageID, at) })
	return err
}
