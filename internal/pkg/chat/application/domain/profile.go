package chat

// Placeholder display names used when enrichment data is missing.
const (
	UnknownUser      = "Unknown User"
	UnknownCommunity = "Unknown Community"
)

// Profile is the public identity of a user.
type Profile struct {
	ID        string `db:"id" json:"id"`
	FullName  string `db:"full_name" json:"full_name"`
	AvatarURL string `db:"avatar_url" json:"avatar_url,omitempty"`
}

// Community is the display data of a community.
type Community struct {
	ID       string `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	ImageURL string `db:"image_url" json:"image_url,omitempty"`
}

// ProfileOrUnknown returns the profile for id, or a placeholder.
func ProfileOrUnknown(profiles map[string]Profile, id string) *Profile {
	if p, ok := profiles[id]; ok {
		return &p
	}
	return &Profile{ID: id, FullName: UnknownUser}
}

// DisplayIdentity resolves the name and avatar shown for a conversation to
// viewerID: the other participant for direct threads, the community otherwise.
func DisplayIdentity(c Conversation, viewerID string, participants []Participant, communities map[string]Community) (name, avatarURL string) {
	if c.Kind == ConversationKindCommunity {
		if c.CommunityID != nil {
			if cm, ok := communities[*c.CommunityID]; ok && cm.Name != "" {
				return cm.Name, cm.ImageURL
			}
		}
		return UnknownCommunity, ""
	}
	for _, p := range participants {
		if p.UserID == viewerID {
			continue
		}
		if p.Profile != nil && p.Profile.FullName != "" {
			return p.Profile.FullName, p.Profile.AvatarURL
		}
		break
	}
	return UnknownUser, ""
}
