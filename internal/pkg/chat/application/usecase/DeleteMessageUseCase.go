package usecase

import (
	"context"
	"strings"

	chat "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/domain"
	repository "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/persistence/repository/port"
)

// DeleteMessageInput names the message and the caller asking to delete it.
type DeleteMessageInput struct {
	MessageID string
	UserID    string
}

// DeleteMessageUseCase soft-deletes a message. Only its author may delete it.
type DeleteMessageUseCase struct {
	Repo  repository.ChatRepository
	Clock Clock
}

func NewDeleteMessageUseCase(repo repository.ChatRepository) *DeleteMessageUseCase {
	return &DeleteMessageUseCase{Repo: repo}
}

func (uc *DeleteMessageUseCase) Execute(ctx context.Context, in DeleteMessageInput) error {
	if strings.TrimSpace(in.MessageID) == "" || strings.TrimSpace(in.UserID) == "" {
		return invalid("message_id and user_id are required")
	}

	q, err := repository.Messages().
		Eq("id", in.MessageID).
		Page(1, 0).
		Build()
	if err != nil {
		return invalid(err.Error())
	}
	rows, err := uc.Repo.FindMessages(ctx, q)
	if err != nil {
		return backend(err)
	}
	if len(rows) == 0 {
		return chat.ErrNotFound
	}
	// Authorship never changes, so the check cannot go stale before the update.
	if rows[0].UserID != in.UserID {
		return chat.ErrNotAuthorized
	}

	if err := uc.Repo.SoftDeleteMessage(ctx, in.MessageID, uc.Clock.now()); err != nil {
		return backend(err)
	}
	return nil
}
