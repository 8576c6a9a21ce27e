package usecase

import (
	"context"
	"strings"

	chat "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/domain"
	repository "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/persistence/repository/port"

	"go.uber.org/zap"
)

type GetConversationInput struct {
	ConversationID string
	ViewerID       string
}

// GetConversationUseCase returns one enriched conversation for the details screen.
type GetConversationUseCase struct {
	Repo     repository.ChatRepository
	Profiles repository.ProfileRepository
	Logger   *zap.Logger
}

func NewGetConversationUseCase(repo repository.ChatRepository, profiles repository.ProfileRepository, logger *zap.Logger) *GetConversationUseCase {
	return &GetConversationUseCase{Repo: repo, Profiles: profiles, Logger: orNop(logger)}
}

func (uc *GetConversationUseCase) Execute(ctx context.Context, in GetConversationInput) (*chat.Summary, error) {
	if strings.TrimSpace(in.ConversationID) == "" {
		return nil, invalid("conversation_id is required")
	}
	conv, err := uc.Repo.GetConversation(ctx, in.ConversationID)
	if err != nil {
		return nil, backend(err)
	}

	var viewer *chat.Participant
	if in.ViewerID != "" {
		q, err := repository.Participants().
			Eq("conversation_id", conv.ID).
			Eq("user_id", in.ViewerID).
			Page(1, 0).
			Build()
		if err != nil {
			return nil, invalid(err.Error())
		}
		rows, err := uc.Repo.FindParticipants(ctx, q)
		if err != nil {
			uc.Logger.Warn("viewer participation lookup failed",
				zap.String("conversation_id", conv.ID), zap.Error(err))
		} else if len(rows) > 0 {
			viewer = &rows[0]
		}
	}

	s := summarizer{repo: uc.Repo, profiles: uc.Profiles, logger: uc.Logger}
	sum := s.summarize(ctx, *conv, in.ViewerID, viewer)
	return &sum, nil
}
