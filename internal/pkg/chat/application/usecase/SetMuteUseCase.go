package usecase

import (
	"context"
	"strings"

	chat "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/domain"
	repository "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/persistence/repository/port"
)

type SetMuteInput struct {
	ConversationID string
	UserID         string
	Muted          bool
}

// SetMuteUseCase toggles the participant's mute flag.
type SetMuteUseCase struct {
	Repo repository.ChatRepository
}

func NewSetMuteUseCase(repo repository.ChatRepository) *SetMuteUseCase {
	return &SetMuteUseCase{Repo: repo}
}

func (uc *SetMuteUseCase) Execute(ctx context.Context, in SetMuteInput) error {
	if strings.TrimSpace(in.ConversationID) == "" || strings.TrimSpace(in.UserID) == "" {
		return invalid("conversation_id and user_id are required")
	}
	found, err := uc.Repo.SetMuted(ctx, in.ConversationID, in.UserID, in.Muted)
	if err != nil {
		return backend(err)
	}
	if !found {
		return chat.ErrNotFound
	}
	return nil
}
