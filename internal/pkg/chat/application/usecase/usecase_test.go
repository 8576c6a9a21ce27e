package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	chat "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/domain"
	"github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/usecase"
	"github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/persistence/repository/adapter"
	"github.com/AndreiCalugar/MyCommunity/internal/pkg/query"
)

// tickingClock advances one second per reading so timestamps never tie.
type tickingClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type harness struct {
	repo  *adapter.MemoryChatRepository
	clock *tickingClock

	resolve   *usecase.ResolveDirectConversationUseCase
	community *usecase.ResolveCommunityConversationUseCase
	send      *usecase.SendMessageUseCase
	fetch     *usecase.GetMessageUseCase
	del       *usecase.DeleteMessageUseCase
	read      *usecase.MarkAsReadUseCase
	unread    *usecase.GetUnreadCountUseCase
	list      *usecase.ListConversationsUseCase
	get       *usecase.GetConversationUseCase
	mute      *usecase.SetMuteUseCase
	join      *usecase.JoinConversationUseCase
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := &tickingClock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	repo := adapter.NewMemoryChatRepository(adapter.WithClock(clock.Now))
	h := &harness{
		repo:      repo,
		clock:     clock,
		resolve:   usecase.NewResolveDirectConversationUseCase(repo, nil),
		community: usecase.NewResolveCommunityConversationUseCase(repo, nil),
		send:      usecase.NewSendMessageUseCase(repo, repo, nil),
		fetch:     usecase.NewGetMessageUseCase(repo, repo, nil),
		del:       usecase.NewDeleteMessageUseCase(repo),
		read:      usecase.NewMarkAsReadUseCase(repo, nil),
		unread:    usecase.NewGetUnreadCountUseCase(repo, nil),
		list:      usecase.NewListConversationsUseCase(repo, repo, nil),
		get:       usecase.NewGetConversationUseCase(repo, repo, nil),
		mute:      usecase.NewSetMuteUseCase(repo),
		join:      usecase.NewJoinConversationUseCase(repo),
	}
	h.community.Clock = clock.Now
	h.send.Clock = clock.Now
	h.del.Clock = clock.Now
	h.read.Clock = clock.Now
	return h
}

func (h *harness) direct(t *testing.T, a, b string) string {
	t.Helper()
	id, err := h.resolve.Execute(context.Background(), usecase.ResolveDirectConversationInput{UserID: a, OtherUserID: b})
	if err != nil {
		t.Fatalf("resolve %s/%s: %v", a, b, err)
	}
	return id
}

func (h *harness) say(t *testing.T, conversationID, userID, body string) *chat.Message {
	t.Helper()
	msg, err := h.send.Execute(context.Background(), usecase.SendMessageInput{ConversationID: conversationID, UserID: userID, Body: body})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	return msg
}

func (h *harness) unreadOf(t *testing.T, userID string) int {
	t.Helper()
	n, err := h.unread.Execute(context.Background(), usecase.GetUnreadCountInput{UserID: userID})
	if err != nil {
		t.Fatalf("unread: %v", err)
	}
	return n
}

func bodies(msgs []chat.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Body
	}
	return out
}

func TestResolveDirectIsIdempotentAndSymmetric(t *testing.T) {
	h := newHarness(t)
	first := h.direct(t, "alice", "bob")
	if again := h.direct(t, "bob", "alice"); again != first {
		t.Fatalf("expected %s for reversed pair, got %s", first, again)
	}

	var wg sync.WaitGroup
	ids := make([]string, 16)
	for i := range ids {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := h.resolve.Execute(context.Background(), usecase.ResolveDirectConversationInput{UserID: "carol", OtherUserID: "dave"})
			if err != nil {
				t.Errorf("concurrent resolve: %v", err)
			}
			ids[i] = id
		}()
	}
	wg.Wait()
	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("concurrent resolution produced distinct ids %v", ids)
		}
	}

	q, _ := query.For("kind").Eq("kind", chat.ConversationKindDirect).Build()
	convs, err := h.repo.FindConversations(context.Background(), q)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("expected 2 direct conversations, got %d", len(convs))
	}
}

func TestResolveDirectRejectsInvalidPairs(t *testing.T) {
	h := newHarness(t)
	cases := []usecase.ResolveDirectConversationInput{
		{UserID: "", OtherUserID: "bob"},
		{UserID: "alice", OtherUserID: "  "},
		{UserID: "alice", OtherUserID: "alice"},
	}
	for _, in := range cases {
		if _, err := h.resolve.Execute(context.Background(), in); !errors.Is(err, usecase.ErrInvalidArgument) {
			t.Fatalf("%+v: expected ErrInvalidArgument, got %v", in, err)
		}
	}
}

func TestSendThenFetchIsChronological(t *testing.T) {
	h := newHarness(t)
	h.repo.PutProfile(chat.Profile{ID: "alice", FullName: "Alice"})
	conv := h.direct(t, "alice", "bob")

	sent := h.say(t, conv, "alice", "one")
	if sent.ID == "" || sent.Author == nil || sent.Author.FullName != "Alice" {
		t.Fatalf("unexpected sent message %+v", sent)
	}
	h.say(t, conv, "bob", "two")
	h.say(t, conv, "alice", "")

	msgs, err := h.fetch.Execute(context.Background(), usecase.GetMessageInput{ConversationID: conv})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	got := bodies(msgs)
	if len(got) != 3 || got[0] != "one" || got[1] != "two" || got[2] != "" {
		t.Fatalf("unexpected history %q", got)
	}
	if msgs[1].Author == nil || msgs[1].Author.FullName != chat.UnknownUser {
		t.Fatalf("expected placeholder author for bob, got %+v", msgs[1].Author)
	}
}

func TestFetchPagesFromNewest(t *testing.T) {
	h := newHarness(t)
	conv := h.direct(t, "alice", "bob")
	for _, b := range []string{"1", "2", "3", "4", "5"} {
		h.say(t, conv, "alice", b)
	}

	page, err := h.fetch.Execute(context.Background(), usecase.GetMessageInput{ConversationID: conv, Limit: 2})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got := bodies(page); len(got) != 2 || got[0] != "4" || got[1] != "5" {
		t.Fatalf("unexpected first page %q", got)
	}
	page, _ = h.fetch.Execute(context.Background(), usecase.GetMessageInput{ConversationID: conv, Limit: 2, Offset: 2})
	if got := bodies(page); len(got) != 2 || got[0] != "2" || got[1] != "3" {
		t.Fatalf("unexpected second page %q", got)
	}
	page, _ = h.fetch.Execute(context.Background(), usecase.GetMessageInput{ConversationID: conv, Limit: 2, Offset: 10})
	if page == nil || len(page) != 0 {
		t.Fatalf("expected empty non-nil page past the end, got %v", page)
	}
}

func TestSendToUnknownConversation(t *testing.T) {
	h := newHarness(t)
	_, err := h.send.Execute(context.Background(), usecase.SendMessageInput{ConversationID: "missing", UserID: "alice", Body: "hi"})
	if !errors.Is(err, chat.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeletedMessagesAreHidden(t *testing.T) {
	h := newHarness(t)
	conv := h.direct(t, "alice", "bob")
	gone := h.say(t, conv, "alice", "oops")
	h.say(t, conv, "alice", "hello")

	if n := h.unreadOf(t, "bob"); n != 2 {
		t.Fatalf("expected 2 unread before delete, got %d", n)
	}
	for i := 0; i < 2; i++ {
		if err := h.del.Execute(context.Background(), usecase.DeleteMessageInput{MessageID: gone.ID, UserID: "alice"}); err != nil {
			t.Fatalf("delete #%d: %v", i, err)
		}
	}

	msgs, _ := h.fetch.Execute(context.Background(), usecase.GetMessageInput{ConversationID: conv})
	if got := bodies(msgs); len(got) != 1 || got[0] != "hello" {
		t.Fatalf("deleted message still visible: %q", got)
	}
	if n := h.unreadOf(t, "bob"); n != 1 {
		t.Fatalf("expected 1 unread after delete, got %d", n)
	}
	sum, err := h.get.Execute(context.Background(), usecase.GetConversationInput{ConversationID: conv, ViewerID: "bob"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sum.LastMessage == nil || sum.LastMessage.Body != "hello" {
		t.Fatalf("unexpected last message %+v", sum.LastMessage)
	}

	if err := h.del.Execute(context.Background(), usecase.DeleteMessageInput{MessageID: "nope", UserID: "alice"}); !errors.Is(err, chat.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown message, got %v", err)
	}
}

func TestUnreadScenario(t *testing.T) {
	h := newHarness(t)
	conv := h.direct(t, "alice", "bob")

	h.say(t, conv, "alice", "a")
	h.say(t, conv, "alice", "b")
	h.say(t, conv, "alice", "c")

	if n := h.unreadOf(t, "bob"); n != 3 {
		t.Fatalf("bob: expected 3 unread, got %d", n)
	}
	if n := h.unreadOf(t, "alice"); n != 0 {
		t.Fatalf("alice must not count her own messages, got %d", n)
	}

	if err := h.read.Execute(context.Background(), usecase.MarkAsReadInput{ConversationID: conv, UserID: "bob"}); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if n := h.unreadOf(t, "bob"); n != 0 {
		t.Fatalf("bob: expected 0 after read, got %d", n)
	}

	h.say(t, conv, "alice", "d")
	if n := h.unreadOf(t, "bob"); n != 1 {
		t.Fatalf("bob: expected 1 after new message, got %d", n)
	}
	h.say(t, conv, "bob", "reply")
	if n := h.unreadOf(t, "bob"); n != 1 {
		t.Fatalf("own reply must not change bob's count, got %d", n)
	}
}

func TestMarkAsReadWithoutParticipationIsNoop(t *testing.T) {
	h := newHarness(t)
	conv := h.direct(t, "alice", "bob")
	if err := h.read.Execute(context.Background(), usecase.MarkAsReadInput{ConversationID: conv, UserID: "mallory"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestEmptyState(t *testing.T) {
	h := newHarness(t)
	list, err := h.list.Execute(context.Background(), usecase.ListConversationsInput{UserID: "newcomer"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Fatalf("expected empty non-nil inbox, got %v", list)
	}
	if n := h.unreadOf(t, "newcomer"); n != 0 {
		t.Fatalf("expected 0 unread, got %d", n)
	}
}

func TestListConversationsOrderedByActivity(t *testing.T) {
	h := newHarness(t)
	h.repo.PutProfile(chat.Profile{ID: "bob", FullName: "Bob", AvatarURL: "https://cdn/bob.png"})
	withBob := h.direct(t, "alice", "bob")
	withCarol := h.direct(t, "alice", "carol")

	h.say(t, withBob, "bob", "hi alice")
	h.say(t, withCarol, "carol", "hey")

	list, err := h.list.Execute(context.Background(), usecase.ListConversationsInput{UserID: "alice"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(list))
	}
	if list[0].ID != withCarol || list[1].ID != withBob {
		t.Fatalf("expected most recent first, got %s then %s", list[0].ID, list[1].ID)
	}
	if list[0].Name != chat.UnknownUser {
		t.Fatalf("carol has no profile, expected placeholder, got %q", list[0].Name)
	}
	if list[1].Name != "Bob" || list[1].AvatarURL != "https://cdn/bob.png" {
		t.Fatalf("unexpected identity %q %q", list[1].Name, list[1].AvatarURL)
	}
	for _, s := range list {
		if s.UnreadCount != 1 || s.ParticipantCount != 2 || s.LastMessage == nil || len(s.Participants) != 2 {
			t.Fatalf("unexpected summary %+v", s)
		}
	}

	h.say(t, withBob, "alice", "back to you")
	list, _ = h.list.Execute(context.Background(), usecase.ListConversationsInput{UserID: "alice"})
	if list[0].ID != withBob {
		t.Fatalf("new activity must move conversation to the top")
	}
}

func TestCommunityConversation(t *testing.T) {
	h := newHarness(t)
	h.repo.PutCommunity(chat.Community{ID: "gophers", Name: "Gophers", ImageURL: "https://cdn/g.png"})

	in := usecase.ResolveCommunityConversationInput{CommunityID: "gophers", MemberIDs: []string{"alice", "bob", ""}}
	first, err := h.community.Execute(context.Background(), in)
	if err != nil {
		t.Fatalf("resolve community: %v", err)
	}
	h.say(t, first, "alice", "welcome")
	if err := h.read.Execute(context.Background(), usecase.MarkAsReadInput{ConversationID: first, UserID: "bob"}); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	// Re-adding members must not reset bob's read state.
	second, err := h.community.Execute(context.Background(), in)
	if err != nil || second != first {
		t.Fatalf("expected same conversation, got %s (%v)", second, err)
	}
	if n := h.unreadOf(t, "bob"); n != 0 {
		t.Fatalf("bob's watermark was reset, unread=%d", n)
	}

	sum, err := h.get.Execute(context.Background(), usecase.GetConversationInput{ConversationID: first, ViewerID: "bob"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sum.Name != "Gophers" || sum.ParticipantCount != 2 || sum.Kind != chat.ConversationKindCommunity {
		t.Fatalf("unexpected community summary %+v", sum)
	}

	if _, err := h.community.Execute(context.Background(), usecase.ResolveCommunityConversationInput{}); !errors.Is(err, usecase.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestGetConversationNotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.get.Execute(context.Background(), usecase.GetConversationInput{ConversationID: "missing", ViewerID: "alice"})
	if !errors.Is(err, chat.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetMute(t *testing.T) {
	h := newHarness(t)
	conv := h.direct(t, "alice", "bob")

	if err := h.mute.Execute(context.Background(), usecase.SetMuteInput{ConversationID: conv, UserID: "alice", Muted: true}); err != nil {
		t.Fatalf("mute: %v", err)
	}
	sum, _ := h.get.Execute(context.Background(), usecase.GetConversationInput{ConversationID: conv, ViewerID: "alice"})
	muted := false
	for _, p := range sum.Participants {
		if p.UserID == "alice" {
			muted = p.IsMuted
		}
	}
	if !muted {
		t.Fatalf("expected alice to be muted")
	}

	err := h.mute.Execute(context.Background(), usecase.SetMuteInput{ConversationID: conv, UserID: "mallory", Muted: true})
	if !errors.Is(err, chat.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for non participant, got %v", err)
	}
}

func TestJoinRequiresParticipation(t *testing.T) {
	h := newHarness(t)
	conv := h.direct(t, "alice", "bob")
	if err := h.join.Execute(context.Background(), usecase.JoinConversationInput{ConversationID: conv, UserID: "bob"}); err != nil {
		t.Fatalf("join: %v", err)
	}
	err := h.join.Execute(context.Background(), usecase.JoinConversationInput{ConversationID: conv, UserID: "mallory"})
	if !errors.Is(err, chat.ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
}

// flakyRepo fails message counts for one conversation.
type flakyRepo struct {
	*adapter.MemoryChatRepository
	failing string
}

func (r flakyRepo) CountMessages(ctx context.Context, q query.Query) (int, error) {
	for _, c := range q.Conditions {
		if c.Column == "conversation_id" && c.Values[0] == r.failing {
			return 0, errors.New("connection reset")
		}
	}
	return r.MemoryChatRepository.CountMessages(ctx, q)
}

func TestUnreadCountToleratesPartialFailure(t *testing.T) {
	h := newHarness(t)
	ok := h.direct(t, "alice", "bob")
	broken := h.direct(t, "alice", "carol")
	h.say(t, ok, "bob", "1")
	h.say(t, ok, "bob", "2")
	h.say(t, broken, "carol", "3")

	uc := usecase.NewGetUnreadCountUseCase(flakyRepo{MemoryChatRepository: h.repo, failing: broken}, nil)
	n, err := uc.Execute(context.Background(), usecase.GetUnreadCountInput{UserID: "alice"})
	if err != nil {
		t.Fatalf("unread: %v", err)
	}
	if n != 2 {
		t.Fatalf("failing conversation must count as zero, got %d", n)
	}

	list, err := usecase.NewListConversationsUseCase(flakyRepo{MemoryChatRepository: h.repo, failing: broken}, h.repo, nil).
		Execute(context.Background(), usecase.ListConversationsInput{UserID: "alice"})
	if err != nil || len(list) != 2 {
		t.Fatalf("list must survive enrichment failures: %v %d", err, len(list))
	}
}

func TestDeleteRequiresAuthor(t *testing.T) {
	h := newHarness(t)
	conv := h.direct(t, "alice", "bob")
	msg := h.say(t, conv, "alice", "mine")

	for _, who := range []string{"bob", "mallory"} {
		err := h.del.Execute(context.Background(), usecase.DeleteMessageInput{MessageID: msg.ID, UserID: who})
		if !errors.Is(err, chat.ErrNotAuthorized) {
			t.Fatalf("%s: expected ErrNotAuthorized, got %v", who, err)
		}
	}
	if msgs, _ := h.fetch.Execute(context.Background(), usecase.GetMessageInput{ConversationID: conv}); len(msgs) != 1 {
		t.Fatalf("message deleted by a non-author: %v", bodies(msgs))
	}
	if err := h.del.Execute(context.Background(), usecase.DeleteMessageInput{MessageID: msg.ID}); !errors.Is(err, usecase.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument without caller, got %v", err)
	}
}
