package task_test

import (
	"context"
	"errors"
	"testing"

	queueAdapter "github.com/AndreiCalugar/MyCommunity/internal/infrastructure/queue/adapter"
	qport "github.com/AndreiCalugar/MyCommunity/internal/infrastructure/queue/port"
	"github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/task"
	"github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/usecase"
	repository "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/persistence/repository/port"
	"github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/persistence/repository/adapter"

	"github.com/hibiken/asynq"
)

func TestSyncCommunityMemberTask(t *testing.T) {
	repo := adapter.NewMemoryChatRepository()
	q := queueAdapter.NewInlineQueue()
	task.RegisterSyncCommunityMemberTask(q, usecase.NewResolveCommunityConversationUseCase(repo, nil), nil)
	ctx := context.Background()

	for _, user := range []string{"alice", "bob", "alice"} {
		tk, err := task.NewSyncCommunityMemberTask("gophers", user)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if _, err := q.Enqueue(ctx, tk); err != nil {
			t.Fatalf("enqueue %s: %v", user, err)
		}
	}

	conv, err := repo.GetOrCreateCommunityConversation(ctx, "gophers")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	query, _ := repository.Participants().Eq("conversation_id", conv).Build()
	ps, _ := repo.FindParticipants(ctx, query)
	if len(ps) != 2 {
		t.Fatalf("expected 2 members, got %+v", ps)
	}
}

func TestSyncCommunityMemberTaskSkipsRetryOnBadInput(t *testing.T) {
	q := queueAdapter.NewInlineQueue()
	task.RegisterSyncCommunityMemberTask(q, usecase.NewResolveCommunityConversationUseCase(adapter.NewMemoryChatRepository(), nil), nil)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, qport.Task{Type: task.SyncCommunityMemberTaskType, Payload: []byte("{")})
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry for malformed payload, got %v", err)
	}
	tk, _ := task.NewSyncCommunityMemberTask(" ", "alice")
	if _, err := q.Enqueue(ctx, tk); !errors.Is(err, asynq.SkipRetry) || !errors.Is(err, usecase.ErrInvalidArgument) {
		t.Fatalf("expected non-retryable invalid argument, got %v", err)
	}
}
