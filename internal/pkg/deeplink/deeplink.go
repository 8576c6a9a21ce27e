// Package deeplink parses web and custom-scheme URLs into in-app navigation
// targets and builds shareable links.
package deeplink

import (
	"regexp"
	"strings"
)

type Kind string

const (
	KindCommunity Kind = "community"
	KindEvent     Kind = "event"
	KindUser      Kind = "user"
	KindChat      Kind = "chat"
	KindDM        Kind = "dm"
	KindUnknown   Kind = "unknown"
)

// Link is a parsed navigation target. ID is empty when nothing matched.
type Link struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id,omitempty"`
}

// IsConversation reports whether the link opens a conversation by id.
func (l Link) IsConversation() bool {
	return l.Kind == KindChat || l.Kind == KindDM
}

type pattern struct {
	kind Kind
	re   *regexp.Regexp
}

// Input is lowercased before matching, so ids only need the lowercase set.
var patterns = []pattern{
	{KindCommunity, regexp.MustCompile(`/(?:c|community)/([a-z0-9-]+)`)},
	{KindEvent, regexp.MustCompile(`/(?:e|event)/([a-z0-9-]+)`)},
	{KindUser, regexp.MustCompile(`/(?:u|user)/([a-z0-9-]+)`)},
	{KindChat, regexp.MustCompile(`/chat/([a-z0-9-]+)`)},
	{KindDM, regexp.MustCompile(`/dm/([a-z0-9-]+)`)},
}

// Parse matches raw against the known shapes in order; the first match wins.
// Unmatched or malformed input yields KindUnknown. Parse never panics.
func Parse(raw string) (link Link) {
	defer func() {
		if recover() != nil {
			link = Link{Kind: KindUnknown}
		}
	}()

	normalized := strings.ToLower(raw)
	for _, p := range patterns {
		if m := p.re.FindStringSubmatch(normalized); m != nil {
			return Link{Kind: p.kind, ID: m[1]}
		}
	}
	return Link{Kind: KindUnknown}
}

// Route returns the in-app screen path for l, or "" when l cannot be opened.
func Route(l Link) string {
	if l.ID == "" {
		return ""
	}
	switch l.Kind {
	case KindCommunity:
		return "/community/" + l.ID + "/timeline"
	case KindEvent:
		return "/community/" + l.ID + "/events"
	case KindUser:
		return "/user/" + l.ID
	case KindChat, KindDM:
		return "/chat/" + l.ID
	}
	return ""
}
