package usecase

import (
	"context"
	"strings"

	repository "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/persistence/repository/port"

	"go.uber.org/zap"
)

type MarkAsReadInput struct {
	ConversationID string
	UserID         string
}

// MarkAsReadUseCase moves the user's read watermark to now.
type MarkAsReadUseCase struct {
	Repo   repository.ChatRepository
	Logger *zap.Logger
	Clock  Clock
}

func NewMarkAsReadUseCase(repo repository.ChatRepository, logger *zap.Logger) *MarkAsReadUseCase {
	return &MarkAsReadUseCase{Repo: repo, Logger: orNop(logger)}
}

// Execute is a no-op when the user has no participant row.
func (uc *MarkAsReadUseCase) Execute(ctx context.Context, in MarkAsReadInput) error {
	if strings.TrimSpace(in.ConversationID) == "" || strings.TrimSpace(in.UserID) == "" {
		return invalid("conversation_id and user_id are required")
	}
	found, err := uc.Repo.UpdateParticipantReadState(ctx, in.ConversationID, in.UserID, uc.Clock.now())
	if err != nil {
		return backend(err)
	}
	if !found {
		uc.Logger.Debug("mark as read without participation",
			zap.String("conversation_id", in.ConversationID), zap.String("user_id", in.UserID))
	}
	return nil
}
