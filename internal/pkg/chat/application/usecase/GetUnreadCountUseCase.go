package usecase

import (
	"context"
	"strings"
	"sync/atomic"

	repository "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/persistence/repository/port"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type GetUnreadCountInput struct {
	UserID string
}

// GetUnreadCountUseCase sums unread messages over every conversation the user
// participates in. It never fails on backend errors: failing lookups count as
// zero and are logged.
type GetUnreadCountUseCase struct {
	Repo   repository.ChatRepository
	Logger *zap.Logger
}

func NewGetUnreadCountUseCase(repo repository.ChatRepository, logger *zap.Logger) *GetUnreadCountUseCase {
	return &GetUnreadCountUseCase{Repo: repo, Logger: orNop(logger)}
}

func (uc *GetUnreadCountUseCase) Execute(ctx context.Context, in GetUnreadCountInput) (int, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return 0, invalid("user_id is required")
	}

	q, err := repository.Participants().Eq("user_id", in.UserID).Build()
	if err != nil {
		return 0, invalid(err.Error())
	}
	participations, err := uc.Repo.FindParticipants(ctx, q)
	if err != nil {
		uc.Logger.Warn("unread count: participation lookup failed",
			zap.String("user_id", in.UserID), zap.Error(err))
		return 0, nil
	}

	var total atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)
	for _, p := range participations {
		p := p
		g.Go(func() error {
			n, err := countUnread(gctx, uc.Repo, p)
			if err != nil {
				uc.Logger.Warn("unread count: conversation lookup failed",
					zap.String("conversation_id", p.ConversationID),
					zap.String("user_id", in.UserID),
					zap.Error(err))
				return nil
			}
			total.Add(int64(n))
			return nil
		})
	}
	_ = g.Wait()
	return int(total.Load()), nil
}
