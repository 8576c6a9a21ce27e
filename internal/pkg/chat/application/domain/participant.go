package chat

import "time"

// Participant captures membership and read/mute state.
// Primary key: (ConversationID, UserID)
type Participant struct {
	ConversationID string     `db:"conversation_id" json:"conversation_id"`
	UserID         string     `db:"user_id" json:"user_id"`
	JoinedAt       time.Time  `db:"joined_at" json:"joined_at"`
	LastReadAt     *time.Time `db:"last_read_at" json:"last_read_at"`
	IsMuted        bool       `db:"is_muted" json:"is_muted"`

	Profile *Profile `db:"-" json:"profile,omitempty"`
}

// ReadWatermark is the instant through which the participant has read.
// A participant that never marked the conversation read is treated as having
// read everything before joining.
func (p Participant) ReadWatermark() time.Time {
	if p.LastReadAt != nil {
		return *p.LastReadAt
	}
	return p.JoinedAt
}
