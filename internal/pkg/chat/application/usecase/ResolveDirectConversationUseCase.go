package usecase

import (
	"context"
	"strings"

	repository "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/persistence/repository/port"

	"go.uber.org/zap"
)

// ResolveDirectConversationInput names the two users of a 1:1 thread.
// Argument order does not matter.
type ResolveDirectConversationInput struct {
	UserID      string
	OtherUserID string
}

// ResolveDirectConversationUseCase returns the unique direct conversation for
// a user pair, creating it (and both participant rows) on first use.
type ResolveDirectConversationUseCase struct {
	Repo   repository.ChatRepository
	Logger *zap.Logger
}

func NewResolveDirectConversationUseCase(repo repository.ChatRepository, logger *zap.Logger) *ResolveDirectConversationUseCase {
	return &ResolveDirectConversationUseCase{Repo: repo, Logger: orNop(logger)}
}

func (uc *ResolveDirectConversationUseCase) Execute(ctx context.Context, in ResolveDirectConversationInput) (string, error) {
	a, b := strings.TrimSpace(in.UserID), strings.TrimSpace(in.OtherUserID)
	if a == "" || b == "" {
		return "", invalid("both user ids are required")
	}
	if a == b {
		return "", invalid("cannot open a direct conversation with yourself")
	}

	id, err := uc.Repo.GetOrCreateDirectConversation(ctx, a, b)
	if err != nil {
		return "", backend(err)
	}
	uc.Logger.Debug("direct conversation resolved", zap.String("conversation_id", id))
	return id, nil
}
