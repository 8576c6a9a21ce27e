package repository

import (
	"context"
	"time"

	chat "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/domain"
	"github.com/AndreiCalugar/MyCommunity/internal/pkg/query"
)

// Filterable columns per table. Queries handed to a repository must be built
// with these allow-lists.
var (
	ConversationColumns = []string{"id", "kind", "community_id", "created_at", "updated_at"}
	ParticipantColumns  = []string{"conversation_id", "user_id", "joined_at", "last_read_at", "is_muted"}
	MessageColumns      = []string{"id", "conversation_id", "user_id", "created_at", "deleted_at"}
)

// Conversations, Participants and Messages start a builder for the matching table.
func Conversations() *query.Builder { return query.For(ConversationColumns...) }
func Participants() *query.Builder  { return query.For(ParticipantColumns...) }
func Messages() *query.Builder      { return query.For(MessageColumns...) }

// ChatRepository defines persistence operations for the messaging core.
//
// Get-or-create operations must be atomic on the store side: concurrent calls
// for the same key return the same id and never create duplicates.
// Adapters report missing rows with chat.ErrNotFound and access-rule
// rejections with chat.ErrNotAuthorized. Stores with their own clock stamp
// joined_at, created_at, last_read_at and deleted_at themselves and ignore
// the times passed in, so every timestamp compared for unread state comes
// from one clock.
type ChatRepository interface {
	GetOrCreateDirectConversation(ctx context.Context, userA, userB string) (string, error)
	GetOrCreateCommunityConversation(ctx context.Context, communityID string) (string, error)
	GetConversation(ctx context.Context, id string) (*chat.Conversation, error)
	FindConversations(ctx context.Context, q query.Query) ([]chat.Conversation, error)

	// AddParticipant inserts the membership row; an existing row keeps its read and mute state.
	AddParticipant(ctx context.Context, p chat.Participant) error
	FindParticipants(ctx context.Context, q query.Query) ([]chat.Participant, error)
	// UpdateParticipantReadState returns false when no participant row matched.
	UpdateParticipantReadState(ctx context.Context, conversationID, userID string, readAt time.Time) (bool, error)
	// SetMuted returns false when no participant row matched.
	SetMuted(ctx context.Context, conversationID, userID string, muted bool) (bool, error)

	// SaveMessage inserts m and bumps the conversation's last activity in one
	// transaction. The returned message carries the store-assigned ID.
	SaveMessage(ctx context.Context, m chat.Message) (chat.Message, error)
	FindMessages(ctx context.Context, q query.Query) ([]chat.Message, error)
	CountMessages(ctx context.Context, q query.Query) (int, error)
	// SoftDeleteMessage sets deleted_at unless already set.
	SoftDeleteMessage(ctx context.Context, messageID string, at time.Time) error
}

// ProfileRepository reads display data owned by other parts of the platform.
// Missing ids are simply absent from the returned maps.
type ProfileRepository interface {
	FindProfiles(ctx context.Context, ids []string) (map[string]chat.Profile, error)
	FindCommunities(ctx context.Context, ids []string) (map[string]chat.Community, error)
}
