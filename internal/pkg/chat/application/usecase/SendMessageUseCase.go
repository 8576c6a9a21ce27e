package usecase

import (
	"context"
	"strings"

	chat "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/domain"
	repository "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/persistence/repository/port"

	"go.uber.org/zap"
)

// SendMessageInput carries the data needed to send a new message.
// An empty body is accepted.
type SendMessageInput struct {
	ConversationID string
	UserID         string
	Body           string
}

// SendMessageUseCase appends a message to a conversation and returns it with
// the author's profile attached.
// Hexagonal: depends on repository ports only
type SendMessageUseCase struct {
	Repo     repository.ChatRepository
	Profiles repository.ProfileRepository
	Logger   *zap.Logger
	Clock    Clock
}

func NewSendMessageUseCase(repo repository.ChatRepository, profiles repository.ProfileRepository, logger *zap.Logger) *SendMessageUseCase {
	return &SendMessageUseCase{Repo: repo, Profiles: profiles, Logger: orNop(logger)}
}

// Execute persists the message. The store bumps the conversation's last
// activity in the same transaction.
func (uc *SendMessageUseCase) Execute(ctx context.Context, in SendMessageInput) (*chat.Message, error) {
	if strings.TrimSpace(in.ConversationID) == "" || strings.TrimSpace(in.UserID) == "" {
		return nil, invalid("conversation_id and user_id are required")
	}

	now := uc.Clock.now()
	msg, err := uc.Repo.SaveMessage(ctx, chat.Message{
		ConversationID: in.ConversationID,
		UserID:         in.UserID,
		Body:           in.Body,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return nil, backend(err)
	}

	// The message is stored; a failed profile lookup only degrades display.
	var profiles map[string]chat.Profile
	if uc.Profiles != nil {
		profiles, err = uc.Profiles.FindProfiles(ctx, []string{msg.UserID})
		if err != nil {
			uc.Logger.Warn("author profile lookup failed",
				zap.String("conversation_id", msg.ConversationID),
				zap.String("user_id", msg.UserID),
				zap.Error(err))
		}
	}
	msg.Author = chat.ProfileOrUnknown(profiles, msg.UserID)
	return &msg, nil
}
