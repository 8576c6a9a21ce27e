package adapter_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/AndreiCalugar/MyCommunity/internal/infrastructure/database"
	chat "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/domain"
	"github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/persistence/repository/adapter"
	repository "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/persistence/repository/port"
)

type store interface {
	repository.ChatRepository
	repository.ProfileRepository
}

func newGormRepository(t *testing.T) *adapter.GormChatRepository {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	repo, err := adapter.NewGormChatRepository(db)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return repo
}

func forEachStore(t *testing.T, fn func(t *testing.T, s store)) {
	t.Run("memory", func(t *testing.T) { fn(t, adapter.NewMemoryChatRepository()) })
	t.Run("gorm", func(t *testing.T) { fn(t, newGormRepository(t)) })
}

func TestDirectConversationIsUniquePerPair(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		var wg sync.WaitGroup
		ids := make([]string, 8)
		for i := range ids {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				a, b := "alice", "bob"
				if i%2 == 1 {
					a, b = b, a
				}
				id, err := s.GetOrCreateDirectConversation(ctx, a, b)
				if err != nil {
					t.Errorf("get or create: %v", err)
				}
				ids[i] = id
			}()
		}
		wg.Wait()
		for _, id := range ids {
			if id == "" || id != ids[0] {
				t.Fatalf("expected one id, got %v", ids)
			}
		}

		q, _ := repository.Participants().Eq("conversation_id", ids[0]).OrderBy("user_id", false).Build()
		ps, err := s.FindParticipants(ctx, q)
		if err != nil {
			t.Fatalf("participants: %v", err)
		}
		if len(ps) != 2 || ps[0].UserID != "alice" || ps[1].UserID != "bob" {
			t.Fatalf("unexpected participants %+v", ps)
		}

		conv, err := s.GetConversation(ctx, ids[0])
		if err != nil || conv.Kind != chat.ConversationKindDirect || conv.CommunityID != nil {
			t.Fatalf("unexpected conversation %+v (%v)", conv, err)
		}
	})
}

func TestCommunityConversationIsUnique(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		first, err := s.GetOrCreateCommunityConversation(ctx, "gophers")
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		second, _ := s.GetOrCreateCommunityConversation(ctx, "gophers")
		other, _ := s.GetOrCreateCommunityConversation(ctx, "rustaceans")
		if first != second || first == other {
			t.Fatalf("unexpected ids %s %s %s", first, second, other)
		}
		conv, err := s.GetConversation(ctx, first)
		if err != nil || conv.CommunityID == nil || *conv.CommunityID != "gophers" {
			t.Fatalf("unexpected conversation %+v (%v)", conv, err)
		}
	})
}

func TestParticipantUpsertKeepsState(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		conv, _ := s.GetOrCreateCommunityConversation(ctx, "gophers")
		joined := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		if err := s.AddParticipant(ctx, chat.Participant{ConversationID: conv, UserID: "alice", JoinedAt: joined}); err != nil {
			t.Fatalf("add: %v", err)
		}
		read := joined.Add(time.Hour)
		if ok, err := s.UpdateParticipantReadState(ctx, conv, "alice", read); err != nil || !ok {
			t.Fatalf("read state: %v %v", ok, err)
		}
		if ok, err := s.SetMuted(ctx, conv, "alice", true); err != nil || !ok {
			t.Fatalf("mute: %v %v", ok, err)
		}
		if err := s.AddParticipant(ctx, chat.Participant{ConversationID: conv, UserID: "alice", JoinedAt: read.Add(time.Hour)}); err != nil {
			t.Fatalf("re-add: %v", err)
		}

		q, _ := repository.Participants().Eq("conversation_id", conv).Eq("user_id", "alice").Build()
		ps, _ := s.FindParticipants(ctx, q)
		if len(ps) != 1 || ps[0].LastReadAt == nil || !ps[0].LastReadAt.Equal(read) || !ps[0].IsMuted || !ps[0].JoinedAt.Equal(joined) {
			t.Fatalf("participant state was reset: %+v", ps)
		}

		if ok, _ := s.UpdateParticipantReadState(ctx, conv, "nobody", read); ok {
			t.Fatalf("expected no row for unknown participant")
		}
		if err := s.AddParticipant(ctx, chat.Participant{ConversationID: "missing", UserID: "alice"}); !errors.Is(err, chat.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestMessagesQueryAndSoftDelete(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		conv, _ := s.GetOrCreateDirectConversation(ctx, "alice", "bob")
		base := time.Now().UTC().Add(time.Minute).Truncate(time.Millisecond)

		var saved []chat.Message
		for i, author := range []string{"alice", "bob", "alice"} {
			m, err := s.SaveMessage(ctx, chat.Message{ConversationID: conv, UserID: author, Body: author, CreatedAt: base.Add(time.Duration(i) * time.Second)})
			if err != nil {
				t.Fatalf("save: %v", err)
			}
			if m.ID == "" {
				t.Fatalf("expected store-assigned id")
			}
			saved = append(saved, m)
		}

		got, err := s.GetConversation(ctx, conv)
		if err != nil || !got.UpdatedAt.Equal(saved[2].CreatedAt) {
			t.Fatalf("conversation activity not bumped: %+v (%v)", got, err)
		}

		q, _ := repository.Messages().Eq("conversation_id", conv).IsNull("deleted_at").
			OrderBy("created_at", true).OrderBy("id", true).Page(2, 0).Build()
		page, err := s.FindMessages(ctx, q)
		if err != nil || len(page) != 2 || page[0].ID != saved[2].ID || page[1].ID != saved[1].ID {
			t.Fatalf("unexpected page %+v (%v)", page, err)
		}

		if err := s.SoftDeleteMessage(ctx, saved[1].ID, base.Add(time.Hour)); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if err := s.SoftDeleteMessage(ctx, saved[1].ID, base.Add(2*time.Hour)); err != nil {
			t.Fatalf("second delete: %v", err)
		}
		if err := s.SoftDeleteMessage(ctx, "missing", base); !errors.Is(err, chat.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}

		deleted, _ := repository.Messages().Eq("id", saved[1].ID).NotNull("deleted_at").Build()
		rows, _ := s.FindMessages(ctx, deleted)
		if len(rows) != 1 || !rows[0].DeletedAt.Equal(base.Add(time.Hour)) {
			t.Fatalf("first deletion timestamp must be kept: %+v", rows)
		}

		unread, _ := repository.Messages().Eq("conversation_id", conv).IsNull("deleted_at").
			Neq("user_id", "bob").Gt("created_at", saved[0].CreatedAt).Build()
		if n, err := s.CountMessages(ctx, unread); err != nil || n != 1 {
			t.Fatalf("expected 1 counted message, got %d (%v)", n, err)
		}

		if _, err := s.SaveMessage(ctx, chat.Message{ConversationID: "missing", UserID: "alice"}); !errors.Is(err, chat.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for unknown conversation, got %v", err)
		}
	})
}

func TestFindConversationsByActivity(t *testing.T) {
	forEachStore(t, func(t *testing.T, s store) {
		ctx := context.Background()
		older, _ := s.GetOrCreateDirectConversation(ctx, "alice", "bob")
		newer, _ := s.GetOrCreateDirectConversation(ctx, "alice", "carol")
		if _, err := s.SaveMessage(ctx, chat.Message{ConversationID: older, UserID: "bob", CreatedAt: time.Now().UTC().Add(time.Hour)}); err != nil {
			t.Fatalf("save: %v", err)
		}

		q, _ := repository.Conversations().In("id", older, newer).OrderBy("updated_at", true).Build()
		convs, err := s.FindConversations(ctx, q)
		if err != nil || len(convs) != 2 || convs[0].ID != older {
			t.Fatalf("expected most recently active first, got %+v (%v)", convs, err)
		}

		none, _ := repository.Conversations().In("id").Build()
		if convs, _ := s.FindConversations(ctx, none); len(convs) != 0 {
			t.Fatalf("empty set must match nothing")
		}
	})
}

func TestGormProfiles(t *testing.T) {
	repo := newGormRepository(t)
	ctx := context.Background()
	if err := repo.SaveProfile(ctx, chat.Profile{ID: "alice", FullName: "Alice"}); err != nil {
		t.Fatalf("save profile: %v", err)
	}
	if err := repo.SaveCommunity(ctx, chat.Community{ID: "gophers", Name: "Gophers"}); err != nil {
		t.Fatalf("save community: %v", err)
	}
	profiles, err := repo.FindProfiles(ctx, []string{"alice", "ghost"})
	if err != nil || len(profiles) != 1 || profiles["alice"].FullName != "Alice" {
		t.Fatalf("unexpected profiles %+v (%v)", profiles, err)
	}
	communities, err := repo.FindCommunities(ctx, []string{"gophers"})
	if err != nil || communities["gophers"].Name != "Gophers" {
		t.Fatalf("unexpected communities %+v (%v)", communities, err)
	}
}
