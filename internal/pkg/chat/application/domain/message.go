package chat

import "time"

// Message is a log entry in a conversation. It is only ever mutated to set
// DeletedAt; ordering key is (CreatedAt, ID).
type Message struct {
	ID             string     `db:"id" json:"id"`
	ConversationID string     `db:"conversation_id" json:"conversation_id"`
	UserID         string     `db:"user_id" json:"user_id"`
	Body           string     `db:"body" json:"body"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt      *time.Time `db:"deleted_at" json:"deleted_at"`

	Author *Profile `db:"-" json:"profile,omitempty"`
}

// Deleted reports whether the message was soft-deleted.
func (m Message) Deleted() bool { return m.DeletedAt != nil }
