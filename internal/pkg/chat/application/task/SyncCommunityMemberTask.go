package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	qport "github.com/AndreiCalugar/MyCommunity/internal/infrastructure/queue/port"
	"github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/usecase"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// SyncCommunityMemberTaskType adds a community member to the community
// conversation.
const SyncCommunityMemberTaskType = "chat:sync_community_member"

// SyncCommunityMemberTaskPayload is the JSON payload transported via the queue.
type SyncCommunityMemberTaskPayload struct {
	CommunityID string `json:"communityId"`
	UserID      string `json:"userId"`
}

// NewSyncCommunityMemberTask encodes the payload for enqueueing.
func NewSyncCommunityMemberTask(communityID, userID string) (qport.Task, error) {
	b, err := json.Marshal(SyncCommunityMemberTaskPayload{CommunityID: communityID, UserID: userID})
	if err != nil {
		return qport.Task{}, err
	}
	return qport.Task{Type: SyncCommunityMemberTaskType, Payload: b}, nil
}

// RegisterSyncCommunityMemberTask binds the handler to srv. Malformed
// payloads and invalid ids are not retried.
func RegisterSyncCommunityMemberTask(srv qport.Server, uc *usecase.ResolveCommunityConversationUseCase, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv.Register(SyncCommunityMemberTaskType, func(ctx context.Context, t qport.Task) error {
		var p SyncCommunityMemberTaskPayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			return fmt.Errorf("decode %s payload: %v: %w", t.Type, err, asynq.SkipRetry)
		}

		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		id, err := uc.Execute(ctx, usecase.ResolveCommunityConversationInput{
			CommunityID: p.CommunityID,
			MemberIDs:   []string{p.UserID},
		})
		if errors.Is(err, usecase.ErrInvalidArgument) {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		if err != nil {
			return err
		}
		logger.Debug("community member synced",
			zap.String("community_id", p.CommunityID),
			zap.String("user_id", p.UserID),
			zap.String("conversation_id", id))
		return nil
	})
}
