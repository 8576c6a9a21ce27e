package chat

import "errors"

// Domain-level errors reported by store adapters.
var (
	ErrNotFound      = errors.New("chat: not found")
	ErrNotAuthorized = errors.New("chat: not authorized by store access rules")
)

// ErrNotParticipant is returned when a user acts on a conversation they do not belong to.
var ErrNotParticipant = errors.New("chat: user is not a participant of the conversation")

// ErrUnavailable reports that the store is temporarily refusing calls.
var ErrUnavailable = errors.New("chat: store temporarily unavailable")
