package chat

import "time"

// ConversationKind distinguishes 1:1 threads from community-wide chats.
type ConversationKind string

const (
	ConversationKindDirect    ConversationKind = "direct"
	ConversationKindCommunity ConversationKind = "community"
)

// Valid reports whether k is a known kind.
func (k ConversationKind) Valid() bool {
	return k == ConversationKindDirect || k == ConversationKindCommunity
}

// Conversation is an addressable thread of messages.
// CommunityID is set iff Kind is community. UpdatedAt is the last-activity
// timestamp and is bumped on every new message.
type Conversation struct {
	ID          string           `db:"id" json:"id"`
	Kind        ConversationKind `db:"kind" json:"type"`
	CommunityID *string          `db:"community_id" json:"community_id"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// DirectKey canonicalizes an unordered user pair so (a, b) and (b, a)
// address the same direct conversation.
func DirectKey(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return userA + ":" + userB
}

// Summary is a conversation enriched for the inbox and details screens.
type Summary struct {
	Conversation
	Name             string        `json:"name"`
	AvatarURL        string        `json:"avatar_url"`
	LastMessage      *Message      `json:"last_message,omitempty"`
	UnreadCount      int           `json:"unread_count"`
	ParticipantCount int           `json:"participant_count"`
	Participants     []Participant `json:"participants,omitempty"`
}
