package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	chat "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/domain"
	repository "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/persistence/repository/port"
	"github.com/AndreiCalugar/MyCommunity/internal/pkg/query"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Table models for the embedded store. They stay private to the adapter so
// the domain types carry no gorm tags.
type gormConversation struct {
	ID          string    `gorm:"primaryKey"`
	Kind        string    `gorm:"not null"`
	CommunityID *string   `gorm:"uniqueIndex"`
	DirectKey   *string   `gorm:"uniqueIndex"`
	CreatedAt   time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime:false;index"`
}

func (gormConversation) TableName() string { return "conversations" }

type gormParticipant struct {
	ConversationID string `gorm:"primaryKey"`
	UserID         string `gorm:"primaryKey;index"`
	JoinedAt       time.Time
	LastReadAt     *time.Time
	IsMuted        bool `gorm:"not null;default:false"`
}

func (gormParticipant) TableName() string { return "participants" }

type gormMessage struct {
	ID             string    `gorm:"primaryKey"`
	ConversationID string    `gorm:"not null;index:idx_messages_history,priority:1"`
	UserID         string    `gorm:"not null"`
	Body           string    `gorm:"not null;default:''"`
	CreatedAt      time.Time `gorm:"autoCreateTime:false;index:idx_messages_history,priority:2"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime:false"`
	DeletedAt      *time.Time
}

func (gormMessage) TableName() string { return "messages" }

type gormProfile struct {
	ID        string `gorm:"primaryKey"`
	FullName  string
	AvatarURL string
}

func (gormProfile) TableName() string { return "profiles" }

type gormCommunity struct {
	ID       string `gorm:"primaryKey"`
	Name     string
	ImageURL string
}

func (gormCommunity) TableName() string { return "communities" }

// GormChatRepository implements the store ports on top of gorm (SQLite for
// single-node deployments).
type GormChatRepository struct {
	db *gorm.DB
}

// NewGormChatRepository migrates the tables and returns the adapter.
func NewGormChatRepository(db *gorm.DB) (*GormChatRepository, error) {
	if db == nil {
		return nil, errors.New("GormChatRepository: nil db")
	}
	if err := db.AutoMigrate(&gormConversation{}, &gormParticipant{}, &gormMessage{}, &gormProfile{}, &gormCommunity{}); err != nil {
		return nil, fmt.Errorf("GormChatRepository: migrate: %w", err)
	}
	return &GormChatRepository{db: db}, nil
}

var (
	_ repository.ChatRepository    = (*GormChatRepository)(nil)
	_ repository.ProfileRepository = (*GormChatRepository)(nil)
)

func (r *GormChatRepository) GetOrCreateDirectConversation(ctx context.Context, userA, userB string) (string, error) {
	key := chat.DirectKey(userA, userB)
	now := time.Now().UTC()
	var id string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conv := gormConversation{ID: uuid.NewString(), Kind: string(chat.ConversationKindDirect), DirectKey: &key, CreatedAt: now, UpdatedAt: now}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&conv)
		if res.Error != nil {
			return res.Error
		}
		var existing gormConversation
		if err := tx.Where("direct_key = ?", key).Take(&existing).Error; err != nil {
			return err
		}
		id = existing.ID
		if res.RowsAffected == 0 {
			return nil
		}
		members := []gormParticipant{
			{ConversationID: id, UserID: userA, JoinedAt: now},
			{ConversationID: id, UserID: userB, JoinedAt: now},
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&members).Error
	})
	return id, mapGormError(err)
}

func (r *GormChatRepository) GetOrCreateCommunityConversation(ctx context.Context, communityID string) (string, error) {
	now := time.Now().UTC()
	var id string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cid := communityID
		conv := gormConversation{ID: uuid.NewString(), Kind: string(chat.ConversationKindCommunity), CommunityID: &cid, CreatedAt: now, UpdatedAt: now}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&conv).Error; err != nil {
			return err
		}
		var existing gormConversation
		if err := tx.Where("community_id = ?", communityID).Take(&existing).Error; err != nil {
			return err
		}
		id = existing.ID
		return nil
	})
	return id, mapGormError(err)
}

func (r *GormChatRepository) GetConversation(ctx context.Context, id string) (*chat.Conversation, error) {
	var row gormConversation
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return nil, mapGormError(err)
	}
	conv := row.toDomain()
	return &conv, nil
}

func (r *GormChatRepository) FindConversations(ctx context.Context, q query.Query) ([]chat.Conversation, error) {
	var rows []gormConversation
	if err := r.scoped(ctx, q).Find(&rows).Error; err != nil {
		return nil, mapGormError(err)
	}
	out := make([]chat.Conversation, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

func (r *GormChatRepository) AddParticipant(ctx context.Context, p chat.Participant) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&gormConversation{}).Where("id = ?", p.ConversationID).Count(&n).Error; err != nil {
			return mapGormError(err)
		}
		if n == 0 {
			return chat.ErrNotFound
		}
		row := gormParticipant{
			ConversationID: p.ConversationID,
			UserID:         p.UserID,
			JoinedAt:       utcOr(p.JoinedAt, time.Now()),
			LastReadAt:     utcPtr(p.LastReadAt),
			IsMuted:        p.IsMuted,
		}
		return mapGormError(tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error)
	})
}

func (r *GormChatRepository) FindParticipants(ctx context.Context, q query.Query) ([]chat.Participant, error) {
	var rows []gormParticipant
	if err := r.scoped(ctx, q).Find(&rows).Error; err != nil {
		return nil, mapGormError(err)
	}
	out := make([]chat.Participant, len(rows))
	for i, row := range rows {
		out[i] = chat.Participant{
			ConversationID: row.ConversationID,
			UserID:         row.UserID,
			JoinedAt:       row.JoinedAt,
			LastReadAt:     row.LastReadAt,
			IsMuted:        row.IsMuted,
		}
	}
	return out, nil
}

func (r *GormChatRepository) UpdateParticipantReadState(ctx context.Context, conversationID, userID string, readAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&gormParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("last_read_at", readAt.UTC())
	if res.Error != nil {
		return false, mapGormError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *GormChatRepository) SetMuted(ctx context.Context, conversationID, userID string, muted bool) (bool, error) {
	res := r.db.WithContext(ctx).Model(&gormParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("is_muted", muted)
	if res.Error != nil {
		return false, mapGormError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *GormChatRepository) SaveMessage(ctx context.Context, m chat.Message) (chat.Message, error) {
	row := gormMessage{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		UserID:         m.UserID,
		Body:           m.Body,
		CreatedAt:      utcOr(m.CreatedAt, time.Now()),
	}
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	row.UpdatedAt = utcOr(m.UpdatedAt, row.CreatedAt)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv gormConversation
		if err := tx.Where("id = ?", row.ConversationID).Take(&conv).Error; err != nil {
			return err
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return tx.Exec("UPDATE conversations SET updated_at = ? WHERE id = ? AND updated_at < ?",
			row.CreatedAt, row.ConversationID, row.CreatedAt).Error
	})
	if err != nil {
		return chat.Message{}, mapGormError(err)
	}
	return row.toDomain(), nil
}

func (r *GormChatRepository) FindMessages(ctx context.Context, q query.Query) ([]chat.Message, error) {
	var rows []gormMessage
	if err := r.scoped(ctx, q).Find(&rows).Error; err != nil {
		return nil, mapGormError(err)
	}
	out := make([]chat.Message, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

func (r *GormChatRepository) CountMessages(ctx context.Context, q query.Query) (int, error) {
	where, args := q.Where(query.Question, 0)
	var n int64
	err := r.db.WithContext(ctx).Model(&gormMessage{}).Where(where, utcArgs(args)...).Count(&n).Error
	return int(n), mapGormError(err)
}

func (r *GormChatRepository) SoftDeleteMessage(ctx context.Context, messageID string, at time.Time) error {
	at = at.UTC()
	res := r.db.WithContext(ctx).Exec(
		"UPDATE messages SET deleted_at = COALESCE(deleted_at, ?), updated_at = CASE WHEN deleted_at IS NULL THEN ? ELSE updated_at END WHERE id = ?",
		at, at, messageID)
	if res.Error != nil {
		return mapGormError(res.Error)
	}
	if res.RowsAffected == 0 {
		return chat.ErrNotFound
	}
	return nil
}

func (r *GormChatRepository) FindProfiles(ctx context.Context, ids []string) (map[string]chat.Profile, error) {
	out := make(map[string]chat.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []gormProfile
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, mapGormError(err)
	}
	for _, row := range rows {
		out[row.ID] = chat.Profile{ID: row.ID, FullName: row.FullName, AvatarURL: row.AvatarURL}
	}
	return out, nil
}

func (r *GormChatRepository) FindCommunities(ctx context.Context, ids []string) (map[string]chat.Community, error) {
	out := make(map[string]chat.Community, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []gormCommunity
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, mapGormError(err)
	}
	for _, row := range rows {
		out[row.ID] = chat.Community{ID: row.ID, Name: row.Name, ImageURL: row.ImageURL}
	}
	return out, nil
}

// SaveProfile upserts display data for a user.
func (r *GormChatRepository) SaveProfile(ctx context.Context, p chat.Profile) error {
	row := gormProfile{ID: p.ID, FullName: p.FullName, AvatarURL: p.AvatarURL}
	return mapGormError(r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error)
}

// SaveCommunity upserts display data for a community.
func (r *GormChatRepository) SaveCommunity(ctx context.Context, c chat.Community) error {
	row := gormCommunity{ID: c.ID, Name: c.Name, ImageURL: c.ImageURL}
	return mapGormError(r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error)
}

// scoped applies q's filter, ordering and paging.
func (r *GormChatRepository) scoped(ctx context.Context, q query.Query) *gorm.DB {
	where, args := q.Where(query.Question, 0)
	tx := r.db.WithContext(ctx).Where(where, utcArgs(args)...)
	if order := q.OrderClause(); order != "" {
		tx = tx.Order(order)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}
	return tx
}

func (c gormConversation) toDomain() chat.Conversation {
	return chat.Conversation{
		ID:          c.ID,
		Kind:        chat.ConversationKind(c.Kind),
		CommunityID: c.CommunityID,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func (m gormMessage) toDomain() chat.Message {
	return chat.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		UserID:         m.UserID,
		Body:           m.Body,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		DeletedAt:      m.DeletedAt,
	}
}

// SQLite compares timestamps as text, so every stored and bound time is UTC.
func utcArgs(args []any) []any {
	for i, a := range args {
		switch v := a.(type) {
		case time.Time:
			args[i] = v.UTC()
		case *time.Time:
			if v != nil {
				args[i] = v.UTC()
			}
		}
	}
	return args
}

func utcOr(t, fallback time.Time) time.Time {
	if t.IsZero() {
		return fallback.UTC()
	}
	return t.UTC()
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func mapGormError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return chat.ErrNotFound
	}
	return err
}
