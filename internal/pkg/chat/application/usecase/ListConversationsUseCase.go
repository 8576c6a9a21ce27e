package usecase

import (
	"context"
	"strings"

	chat "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/domain"
	repository "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/persistence/repository/port"
	"github.com/AndreiCalugar/MyCommunity/internal/pkg/query"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type ListConversationsInput struct {
	UserID string
}

// ListConversationsUseCase builds the user's inbox, most recently active first.
type ListConversationsUseCase struct {
	Repo     repository.ChatRepository
	Profiles repository.ProfileRepository
	Logger   *zap.Logger
}

func NewListConversationsUseCase(repo repository.ChatRepository, profiles repository.ProfileRepository, logger *zap.Logger) *ListConversationsUseCase {
	return &ListConversationsUseCase{Repo: repo, Profiles: profiles, Logger: orNop(logger)}
}

// Execute fails only when the participations or conversations cannot be
// listed; enrichment failures fall back to placeholders.
func (uc *ListConversationsUseCase) Execute(ctx context.Context, in ListConversationsInput) ([]chat.Summary, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return nil, invalid("user_id is required")
	}

	pq, err := repository.Participants().Eq("user_id", in.UserID).Build()
	if err != nil {
		return nil, invalid(err.Error())
	}
	participations, err := uc.Repo.FindParticipants(ctx, pq)
	if err != nil {
		return nil, backend(err)
	}
	if len(participations) == 0 {
		return []chat.Summary{}, nil
	}

	byConversation := make(map[string]chat.Participant, len(participations))
	ids := make([]string, 0, len(participations))
	for _, p := range participations {
		byConversation[p.ConversationID] = p
		ids = append(ids, p.ConversationID)
	}

	cq, err := repository.Conversations().
		In("id", query.Strings(ids)...).
		OrderBy("updated_at", true).
		OrderBy("id", true).
		Build()
	if err != nil {
		return nil, invalid(err.Error())
	}
	convs, err := uc.Repo.FindConversations(ctx, cq)
	if err != nil {
		return nil, backend(err)
	}

	s := summarizer{repo: uc.Repo, profiles: uc.Profiles, logger: uc.Logger}
	out := make([]chat.Summary, len(convs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)
	for i, conv := range convs {
		i, conv := i, conv
		viewer := byConversation[conv.ID]
		g.Go(func() error {
			out[i] = s.summarize(gctx, conv, in.UserID, &viewer)
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}
