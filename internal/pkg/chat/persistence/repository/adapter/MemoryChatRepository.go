package adapter

import (
	"context"
	"sync"
	"time"

	chat "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/domain"
	repository "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/persistence/repository/port"
	"github.com/AndreiCalugar/MyCommunity/internal/pkg/query"

	"github.com/google/uuid"
)

// MemoryChatRepository keeps everything in process memory. It backs the
// "memory" database driver for local runs and the use case tests.
type MemoryChatRepository struct {
	mu sync.RWMutex

	conversations map[string]chat.Conversation
	directs       map[string]string // DirectKey -> conversation id
	communities   map[string]string // community id -> conversation id
	participants  map[string]map[string]chat.Participant
	messages      map[string]chat.Message

	profiles    map[string]chat.Profile
	communityDB map[string]chat.Community

	now func() time.Time
}

// MemoryOption configures a MemoryChatRepository.
type MemoryOption func(*MemoryChatRepository)

// WithClock overrides the clock used for store-assigned timestamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(r *MemoryChatRepository) { r.now = now }
}

func NewMemoryChatRepository(opts ...MemoryOption) *MemoryChatRepository {
	r := &MemoryChatRepository{
		conversations: make(map[string]chat.Conversation),
		directs:       make(map[string]string),
		communities:   make(map[string]string),
		participants:  make(map[string]map[string]chat.Participant),
		messages:      make(map[string]chat.Message),
		profiles:      make(map[string]chat.Profile),
		communityDB:   make(map[string]chat.Community),
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

var (
	_ repository.ChatRepository    = (*MemoryChatRepository)(nil)
	_ repository.ProfileRepository = (*MemoryChatRepository)(nil)
)

// PutProfile seeds display data for a user.
func (r *MemoryChatRepository) PutProfile(p chat.Profile) {
	r.mu.Lock()
	r.profiles[p.ID] = p
	r.mu.Unlock()
}

// PutCommunity seeds display data for a community.
func (r *MemoryChatRepository) PutCommunity(c chat.Community) {
	r.mu.Lock()
	r.communityDB[c.ID] = c
	r.mu.Unlock()
}

func (r *MemoryChatRepository) GetOrCreateDirectConversation(ctx context.Context, userA, userB string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := chat.DirectKey(userA, userB)

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.directs[key]; ok {
		return id, nil
	}
	now := r.now()
	conv := chat.Conversation{ID: uuid.NewString(), Kind: chat.ConversationKindDirect, CreatedAt: now, UpdatedAt: now}
	r.conversations[conv.ID] = conv
	r.directs[key] = conv.ID
	r.addParticipantLocked(chat.Participant{ConversationID: conv.ID, UserID: userA, JoinedAt: now})
	r.addParticipantLocked(chat.Participant{ConversationID: conv.ID, UserID: userB, JoinedAt: now})
	return conv.ID, nil
}

func (r *MemoryChatRepository) GetOrCreateCommunityConversation(ctx context.Context, communityID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.communities[communityID]; ok {
		return id, nil
	}
	now := r.now()
	cid := communityID
	conv := chat.Conversation{ID: uuid.NewString(), Kind: chat.ConversationKindCommunity, CommunityID: &cid, CreatedAt: now, UpdatedAt: now}
	r.conversations[conv.ID] = conv
	r.communities[communityID] = conv.ID
	return conv.ID, nil
}

func (r *MemoryChatRepository) GetConversation(ctx context.Context, id string) (*chat.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conversations[id]
	if !ok {
		return nil, chat.ErrNotFound
	}
	return &c, nil
}

func (r *MemoryChatRepository) FindConversations(ctx context.Context, q query.Query) ([]chat.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	var rows []conversationRecord
	for _, c := range r.conversations {
		if q.Match(conversationRecord(c)) {
			rows = append(rows, conversationRecord(c))
		}
	}
	r.mu.RUnlock()

	query.Sort(rows, q.Orders)
	rows = query.Paginate(rows, q.Limit, q.Offset)
	out := make([]chat.Conversation, len(rows))
	for i, row := range rows {
		out[i] = chat.Conversation(row)
	}
	return out, nil
}

func (r *MemoryChatRepository) AddParticipant(ctx context.Context, p chat.Participant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conversations[p.ConversationID]; !ok {
		return chat.ErrNotFound
	}
	if p.JoinedAt.IsZero() {
		p.JoinedAt = r.now()
	}
	r.addParticipantLocked(p)
	return nil
}

// addParticipantLocked keeps an existing row untouched.
func (r *MemoryChatRepository) addParticipantLocked(p chat.Participant) {
	members := r.participants[p.ConversationID]
	if members == nil {
		members = make(map[string]chat.Participant)
		r.participants[p.ConversationID] = members
	}
	if _, exists := members[p.UserID]; exists {
		return
	}
	p.Profile = nil
	members[p.UserID] = p
}

func (r *MemoryChatRepository) FindParticipants(ctx context.Context, q query.Query) ([]chat.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	var rows []participantRecord
	for _, members := range r.participants {
		for _, p := range members {
			if q.Match(participantRecord(p)) {
				rows = append(rows, participantRecord(p))
			}
		}
	}
	r.mu.RUnlock()

	query.Sort(rows, q.Orders)
	rows = query.Paginate(rows, q.Limit, q.Offset)
	out := make([]chat.Participant, len(rows))
	for i, row := range rows {
		out[i] = chat.Participant(row)
	}
	return out, nil
}

func (r *MemoryChatRepository) UpdateParticipantReadState(ctx context.Context, conversationID, userID string, readAt time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[conversationID][userID]
	if !ok {
		return false, nil
	}
	at := readAt
	p.LastReadAt = &at
	r.participants[conversationID][userID] = p
	return true, nil
}

func (r *MemoryChatRepository) SetMuted(ctx context.Context, conversationID, userID string, muted bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[conversationID][userID]
	if !ok {
		return false, nil
	}
	p.IsMuted = muted
	r.participants[conversationID][userID] = p
	return true, nil
}

func (r *MemoryChatRepository) SaveMessage(ctx context.Context, m chat.Message) (chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return chat.Message{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.conversations[m.ConversationID]
	if !ok {
		return chat.Message{}, chat.ErrNotFound
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = r.now()
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = m.CreatedAt
	}
	m.DeletedAt = nil
	m.Author = nil
	r.messages[m.ID] = m

	if m.CreatedAt.After(conv.UpdatedAt) {
		conv.UpdatedAt = m.CreatedAt
		r.conversations[conv.ID] = conv
	}
	return m, nil
}

func (r *MemoryChatRepository) FindMessages(ctx context.Context, q query.Query) ([]chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows := r.matchMessages(q)
	query.Sort(rows, q.Orders)
	rows = query.Paginate(rows, q.Limit, q.Offset)
	out := make([]chat.Message, len(rows))
	for i, row := range rows {
		out[i] = chat.Message(row)
	}
	return out, nil
}

func (r *MemoryChatRepository) CountMessages(ctx context.Context, q query.Query) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return len(r.matchMessages(q)), nil
}

func (r *MemoryChatRepository) matchMessages(q query.Query) []messageRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var rows []messageRecord
	for _, m := range r.messages {
		if q.Match(messageRecord(m)) {
			rows = append(rows, messageRecord(m))
		}
	}
	return rows
}

func (r *MemoryChatRepository) SoftDeleteMessage(ctx context.Context, messageID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[messageID]
	if !ok {
		return chat.ErrNotFound
	}
	if m.DeletedAt != nil {
		return nil
	}
	deletedAt := at
	m.DeletedAt = &deletedAt
	m.UpdatedAt = at
	r.messages[messageID] = m
	return nil
}

func (r *MemoryChatRepository) FindProfiles(ctx context.Context, ids []string) (map[string]chat.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]chat.Profile, len(ids))
	for _, id := range ids {
		if p, ok := r.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (r *MemoryChatRepository) FindCommunities(ctx context.Context, ids []string) (map[string]chat.Community, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]chat.Community, len(ids))
	for _, id := range ids {
		if c, ok := r.communityDB[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

// ===================== query.Record views =====================

type conversationRecord chat.Conversation

func (c conversationRecord) Field(column string) any {
	switch column {
	case "id":
		return c.ID
	case "kind":
		return string(c.Kind)
	case "community_id":
		return c.CommunityID
	case "created_at":
		return c.CreatedAt
	case "updated_at":
		return c.UpdatedAt
	}
	return nil
}

type participantRecord chat.Participant

func (p participantRecord) Field(column string) any {
	switch column {
	case "conversation_id":
		return p.ConversationID
	case "user_id":
		return p.UserID
	case "joined_at":
		return p.JoinedAt
	case "last_read_at":
		return p.LastReadAt
	case "is_muted":
		return p.IsMuted
	}
	return nil
}

type messageRecord chat.Message

func (m messageRecord) Field(column string) any {
	switch column {
	case "id":
		return m.ID
	case "conversation_id":
		return m.ConversationID
	case "user_id":
		return m.UserID
	case "created_at":
		return m.CreatedAt
	case "deleted_at":
		return m.DeletedAt
	}
	return nil
}
