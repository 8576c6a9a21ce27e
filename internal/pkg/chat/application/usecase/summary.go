package usecase

import (
	"context"

	chat "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/domain"
	repository "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/persistence/repository/port"

	"go.uber.org/zap"
)

// summarizer enriches a conversation for display. Each lookup degrades to a
// placeholder on failure so one bad row never fails a whole inbox.
type summarizer struct {
	repo     repository.ChatRepository
	profiles repository.ProfileRepository
	logger   *zap.Logger
}

func (s summarizer) summarize(ctx context.Context, conv chat.Conversation, viewerID string, viewer *chat.Participant) chat.Summary {
	sum := chat.Summary{Conversation: conv}
	log := s.logger.With(zap.String("conversation_id", conv.ID), zap.String("user_id", viewerID))

	participants, err := s.findParticipants(ctx, conv.ID)
	if err != nil {
		log.Warn("summary: participant lookup failed", zap.Error(err))
	}
	sum.ParticipantCount = len(participants)

	last, err := s.lastMessage(ctx, conv.ID)
	if err != nil {
		log.Warn("summary: last message lookup failed", zap.Error(err))
	}

	if viewer != nil {
		n, err := countUnread(ctx, s.repo, *viewer)
		if err != nil {
			log.Warn("summary: unread count failed", zap.Error(err))
		}
		sum.UnreadCount = n
	}

	var ids []string
	if conv.Kind == chat.ConversationKindDirect {
		for _, p := range participants {
			ids = append(ids, p.UserID)
		}
	}
	if last != nil {
		ids = append(ids, last.UserID)
	}
	profiles := map[string]chat.Profile{}
	if len(ids) > 0 && s.profiles != nil {
		found, err := s.profiles.FindProfiles(ctx, ids)
		if err != nil {
			log.Warn("summary: profile lookup failed", zap.Error(err))
		} else {
			profiles = found
		}
	}

	var communities map[string]chat.Community
	if conv.Kind == chat.ConversationKindCommunity && conv.CommunityID != nil && s.profiles != nil {
		communities, err = s.profiles.FindCommunities(ctx, []string{*conv.CommunityID})
		if err != nil {
			log.Warn("summary: community lookup failed", zap.Error(err))
		}
	}

	if conv.Kind == chat.ConversationKindDirect {
		for i := range participants {
			participants[i].Profile = chat.ProfileOrUnknown(profiles, participants[i].UserID)
		}
		sum.Participants = participants
	}
	if last != nil {
		last.Author = chat.ProfileOrUnknown(profiles, last.UserID)
		sum.LastMessage = last
	}
	sum.Name, sum.AvatarURL = chat.DisplayIdentity(conv, viewerID, participants, communities)
	return sum
}

func (s summarizer) findParticipants(ctx context.Context, conversationID string) ([]chat.Participant, error) {
	q, err := repository.Participants().
		Eq("conversation_id", conversationID).
		OrderBy("joined_at", false).
		OrderBy("user_id", false).
		Build()
	if err != nil {
		return nil, err
	}
	return s.repo.FindParticipants(ctx, q)
}

func (s summarizer) lastMessage(ctx context.Context, conversationID string) (*chat.Message, error) {
	q, err := repository.Messages().
		Eq("conversation_id", conversationID).
		IsNull("deleted_at").
		OrderBy("created_at", true).
		OrderBy("id", true).
		Page(1, 0).
		Build()
	if err != nil {
		return nil, err
	}
	msgs, err := s.repo.FindMessages(ctx, q)
	if err != nil || len(msgs) == 0 {
		return nil, err
	}
	return &msgs[0], nil
}
