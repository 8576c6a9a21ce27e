package usecase

import (
	"context"
	"strings"

	chat "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/domain"
	repository "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/persistence/repository/port"

	"go.uber.org/zap"
)

// ResolveCommunityConversationInput identifies the community and, optionally,
// members to register as participants.
type ResolveCommunityConversationInput struct {
	CommunityID string
	MemberIDs   []string
}

// ResolveCommunityConversationUseCase returns the single conversation of a
// community, creating it lazily. Listed members are added without touching
// the read state of existing participants.
type ResolveCommunityConversationUseCase struct {
	Repo   repository.ChatRepository
	Logger *zap.Logger
	Clock  Clock
}

func NewResolveCommunityConversationUseCase(repo repository.ChatRepository, logger *zap.Logger) *ResolveCommunityConversationUseCase {
	return &ResolveCommunityConversationUseCase{Repo: repo, Logger: orNop(logger)}
}

func (uc *ResolveCommunityConversationUseCase) Execute(ctx context.Context, in ResolveCommunityConversationInput) (string, error) {
	communityID := strings.TrimSpace(in.CommunityID)
	if communityID == "" {
		return "", invalid("community_id is required")
	}

	id, err := uc.Repo.GetOrCreateCommunityConversation(ctx, communityID)
	if err != nil {
		return "", backend(err)
	}

	joinedAt := uc.Clock.now()
	for _, uid := range in.MemberIDs {
		uid = strings.TrimSpace(uid)
		if uid == "" {
			continue
		}
		p := chat.Participant{ConversationID: id, UserID: uid, JoinedAt: joinedAt}
		if err := uc.Repo.AddParticipant(ctx, p); err != nil {
			return "", backend(err)
		}
	}
	return id, nil
}
