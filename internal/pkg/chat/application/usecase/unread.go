package usecase

import (
	"context"

	chat "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/domain"
	repository "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/persistence/repository/port"
)

// countUnread counts visible messages by other users after p's read watermark.
func countUnread(ctx context.Context, repo repository.ChatRepository, p chat.Participant) (int, error) {
	q, err := repository.Messages().
		Eq("conversation_id", p.ConversationID).
		IsNull("deleted_at").
		Neq("user_id", p.UserID).
		Gt("created_at", p.ReadWatermark()).
		Build()
	if err != nil {
		return 0, err
	}
	return repo.CountMessages(ctx, q)
}
