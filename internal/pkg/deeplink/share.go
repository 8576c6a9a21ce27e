package deeplink

import "strings"

const (
	DefaultWebBaseURL = "https://mycommunity.app"
	DefaultAppScheme  = "mycommunityapp"
)

// Builder renders outbound links. The zero value uses the defaults.
type Builder struct {
	WebBaseURL string
	AppScheme  string
}

func (b Builder) base() string {
	if b.WebBaseURL == "" {
		return DefaultWebBaseURL
	}
	return strings.TrimRight(b.WebBaseURL, "/")
}

func (b Builder) scheme() string {
	s := strings.TrimSuffix(b.AppScheme, "://")
	if s == "" {
		s = DefaultAppScheme
	}
	return s + "://"
}

// ShareURL returns a web link for communities, events and users. Other kinds
// get the bare base URL.
func (b Builder) ShareURL(kind Kind, id string) string {
	base := b.base()
	switch kind {
	case KindCommunity:
		return base + "/c/" + id
	case KindEvent:
		return base + "/e/" + id
	case KindUser:
		return base + "/u/" + id
	}
	return base
}

// AppLink returns a custom-scheme link. Direct-message links share the chat
// path since both open a conversation by id.
func (b Builder) AppLink(kind Kind, id string) string {
	scheme := b.scheme()
	switch kind {
	case KindCommunity:
		return scheme + "community/" + id
	case KindEvent:
		return scheme + "event/" + id
	case KindUser:
		return scheme + "user/" + id
	case KindChat, KindDM:
		return scheme + "chat/" + id
	}
	return scheme
}
