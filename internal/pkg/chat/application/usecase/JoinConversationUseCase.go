package usecase

import (
	"context"
	"strings"

	chat "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/domain"
	repository "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/persistence/repository/port"
)

// JoinConversationInput validates a request to attach a user session to a conversation.
type JoinConversationInput struct {
	ConversationID string
	UserID         string
}

// JoinConversationUseCase ensures the user belongs to the conversation before joining the realtime room.
type JoinConversationUseCase struct {
	Repo repository.ChatRepository
}

func NewJoinConversationUseCase(repo repository.ChatRepository) *JoinConversationUseCase {
	return &JoinConversationUseCase{Repo: repo}
}

func (uc *JoinConversationUseCase) Execute(ctx context.Context, in JoinConversationInput) error {
	if strings.TrimSpace(in.ConversationID) == "" || strings.TrimSpace(in.UserID) == "" {
		return invalid("conversation_id and user_id are required")
	}

	q, err := repository.Participants().
		Eq("conversation_id", in.ConversationID).
		Eq("user_id", in.UserID).
		Page(1, 0).
		Build()
	if err != nil {
		return invalid(err.Error())
	}
	rows, err := uc.Repo.FindParticipants(ctx, q)
	if err != nil {
		return backend(err)
	}
	if len(rows) == 0 {
		return chat.ErrNotParticipant
	}
	return nil
}
