package usecase

import (
	"context"
	"slices"
	"strings"

	chat "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/domain"
	repository "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/persistence/repository/port"

	"go.uber.org/zap"
)

// GetMessageInput carries parameters to fetch messages of a conversation.
// Offset counts from the newest message.
type GetMessageInput struct {
	ConversationID string
	Limit          int
	Offset         int
}

// GetMessageUseCase fetches one page of a conversation's visible history.
type GetMessageUseCase struct {
	Repo     repository.ChatRepository
	Profiles repository.ProfileRepository
	Logger   *zap.Logger
}

func NewGetMessageUseCase(repo repository.ChatRepository, profiles repository.ProfileRepository, logger *zap.Logger) *GetMessageUseCase {
	return &GetMessageUseCase{Repo: repo, Profiles: profiles, Logger: orNop(logger)}
}

// Execute pages newest-first and returns the page in chronological order,
// each message carrying its author's profile.
func (uc *GetMessageUseCase) Execute(ctx context.Context, in GetMessageInput) ([]chat.Message, error) {
	if strings.TrimSpace(in.ConversationID) == "" {
		return nil, invalid("conversation_id is required")
	}
	limit, offset := NormalizePage(in.Limit, in.Offset)

	q, err := repository.Messages().
		Eq("conversation_id", in.ConversationID).
		IsNull("deleted_at").
		OrderBy("created_at", true).
		OrderBy("id", true).
		Page(limit, offset).
		Build()
	if err != nil {
		return nil, invalid(err.Error())
	}

	msgs, err := uc.Repo.FindMessages(ctx, q)
	if err != nil {
		return nil, backend(err)
	}
	if len(msgs) == 0 {
		return []chat.Message{}, nil
	}
	slices.Reverse(msgs)

	authorIDs := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if !slices.Contains(authorIDs, m.UserID) {
			authorIDs = append(authorIDs, m.UserID)
		}
	}
	var profiles map[string]chat.Profile
	if uc.Profiles != nil {
		profiles, err = uc.Profiles.FindProfiles(ctx, authorIDs)
		if err != nil {
			uc.Logger.Warn("author profile lookup failed",
				zap.String("conversation_id", in.ConversationID), zap.Error(err))
		}
	}
	for i := range msgs {
		msgs[i].Author = chat.ProfileOrUnknown(profiles, msgs[i].UserID)
	}
	return msgs, nil
}
