package adapter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	chat "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/domain"
	repository "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/persistence/repository/port"
	"github.com/AndreiCalugar/MyCommunity/internal/pkg/query"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	conversationSelect = "SELECT id, kind, community_id, created_at, updated_at FROM chat.conversations"
	participantSelect  = "SELECT conversation_id, user_id, joined_at, last_read_at, is_muted FROM chat.participants"
	messageSelect      = "SELECT id, conversation_id, user_id, body, created_at, updated_at, deleted_at FROM chat.messages"
)

type PgChatRepository struct {
	pool *pgxpool.Pool
}

func NewPgChatRepository(pool *pgxpool.Pool) *PgChatRepository {
	return &PgChatRepository{pool: pool}
}

var (
	_ repository.ChatRepository    = (*PgChatRepository)(nil)
	_ repository.ProfileRepository = (*PgChatRepository)(nil)
)

var errNilPool = errors.New("PgChatRepository: nil pool")

func (r *PgChatRepository) ready() error {
	if r == nil || r.pool == nil {
		return errNilPool
	}
	return nil
}

func (r *PgChatRepository) GetOrCreateDirectConversation(ctx context.Context, userA, userB string) (string, error) {
	if err := r.ready(); err != nil {
		return "", err
	}
	var id string
	err := r.pool.QueryRow(ctx, "SELECT chat.get_or_create_direct_conversation($1, $2)", userA, userB).Scan(&id)
	return id, mapPgError(err)
}

func (r *PgChatRepository) GetOrCreateCommunityConversation(ctx context.Context, communityID string) (string, error) {
	if err := r.ready(); err != nil {
		return "", err
	}
	var id string
	err := r.pool.QueryRow(ctx, "SELECT chat.get_or_create_community_conversation($1)", communityID).Scan(&id)
	return id, mapPgError(err)
}

func (r *PgChatRepository) GetConversation(ctx context.Context, id string) (*chat.Conversation, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, conversationSelect+" WHERE id = $1", id)
	if err != nil {
		return nil, mapPgError(err)
	}
	conv, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[chat.Conversation])
	if err != nil {
		return nil, mapPgError(err)
	}
	return &conv, nil
}

func (r *PgChatRepository) FindConversations(ctx context.Context, q query.Query) ([]chat.Conversation, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	sql, args := selectWith(conversationSelect, q)
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapPgError(err)
	}
	convs, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[chat.Conversation])
	return convs, mapPgError(err)
}

// AddParticipant takes joined_at from the database clock; p.JoinedAt is
// ignored.
func (r *PgChatRepository) AddParticipant(ctx context.Context, p chat.Participant) error {
	if err := r.ready(); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO chat.participants (conversation_id, user_id, last_read_at, is_muted)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (conversation_id, user_id) DO NOTHING
	`, p.ConversationID, p.UserID, p.LastReadAt, p.IsMuted)
	return mapPgError(err)
}

func (r *PgChatRepository) FindParticipants(ctx context.Context, q query.Query) ([]chat.Participant, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	sql, args := selectWith(participantSelect, q)
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapPgError(err)
	}
	ps, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[chat.Participant])
	return ps, mapPgError(err)
}

// UpdateParticipantReadState stamps last_read_at with the database clock, the
// same clock that sets joined_at and created_at. readAt is ignored.
func (r *PgChatRepository) UpdateParticipantReadState(ctx context.Context, conversationID, userID string, _ time.Time) (bool, error) {
	if err := r.ready(); err != nil {
		return false, err
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE chat.participants
		SET last_read_at = now()
		WHERE conversation_id = $1 AND user_id = $2
	`, conversationID, userID)
	if err != nil {
		return false, mapPgError(err)
	}
	return ct.RowsAffected() > 0, nil
}

func (r *PgChatRepository) SetMuted(ctx context.Context, conversationID, userID string, muted bool) (bool, error) {
	if err := r.ready(); err != nil {
		return false, err
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE chat.participants
		SET is_muted = $3
		WHERE conversation_id = $1 AND user_id = $2
	`, conversationID, userID, muted)
	if err != nil {
		return false, mapPgError(err)
	}
	return ct.RowsAffected() > 0, nil
}

// SaveMessage inserts the message and bumps the conversation's activity
// timestamp in one transaction. Timestamps come from the database clock;
// m.CreatedAt and m.UpdatedAt are ignored.
func (r *PgChatRepository) SaveMessage(ctx context.Context, m chat.Message) (chat.Message, error) {
	if err := r.ready(); err != nil {
		return chat.Message{}, err
	}

	var saved chat.Message
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			INSERT INTO chat.messages (conversation_id, user_id, body)
			VALUES ($1, $2, $3)
			RETURNING id, conversation_id, user_id, body, created_at, updated_at, deleted_at
		`, m.ConversationID, m.UserID, m.Body)
		if err != nil {
			return err
		}
		saved, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[chat.Message])
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE chat.conversations
			SET updated_at = GREATEST(updated_at, $2)
			WHERE id = $1
		`, saved.ConversationID, saved.CreatedAt)
		return err
	})
	if err != nil {
		return chat.Message{}, mapPgError(err)
	}
	return saved, nil
}

func (r *PgChatRepository) FindMessages(ctx context.Context, q query.Query) ([]chat.Message, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	sql, args := selectWith(messageSelect, q)
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapPgError(err)
	}
	msgs, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[chat.Message])
	return msgs, mapPgError(err)
}

func (r *PgChatRepository) CountMessages(ctx context.Context, q query.Query) (int, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}
	where, args := q.Where(query.Dollar, 0)
	var n int
	err := r.pool.QueryRow(ctx, "SELECT count(*) FROM chat.messages WHERE "+where, args...).Scan(&n)
	return n, mapPgError(err)
}

// SoftDeleteMessage stamps deleted_at with the database clock; at is ignored.
func (r *PgChatRepository) SoftDeleteMessage(ctx context.Context, messageID string, _ time.Time) error {
	if err := r.ready(); err != nil {
		return err
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE chat.messages
		SET deleted_at = COALESCE(deleted_at, now()),
		    updated_at = CASE WHEN deleted_at IS NULL THEN now() ELSE updated_at END
		WHERE id = $1
	`, messageID)
	if err != nil {
		return mapPgError(err)
	}
	if ct.RowsAffected() == 0 {
		return chat.ErrNotFound
	}
	return nil
}

func (r *PgChatRepository) FindProfiles(ctx context.Context, ids []string) (map[string]chat.Profile, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	out := make(map[string]chat.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, full_name, COALESCE(avatar_url, '') AS avatar_url
		FROM public.profiles
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, mapPgError(err)
	}
	profiles, err := pgx.CollectRows(rows, pgx.RowToStructByName[chat.Profile])
	if err != nil {
		return nil, mapPgError(err)
	}
	for _, p := range profiles {
		out[p.ID] = p
	}
	return out, nil
}

func (r *PgChatRepository) FindCommunities(ctx context.Context, ids []string) (map[string]chat.Community, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	out := make(map[string]chat.Community, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, COALESCE(image_url, '') AS image_url
		FROM public.communities
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, mapPgError(err)
	}
	communities, err := pgx.CollectRows(rows, pgx.RowToStructByName[chat.Community])
	if err != nil {
		return nil, mapPgError(err)
	}
	for _, c := range communities {
		out[c.ID] = c
	}
	return out, nil
}

// selectWith appends WHERE, ORDER BY and paging clauses rendered from q.
func selectWith(base string, q query.Query) (string, []any) {
	where, args := q.Where(query.Dollar, 0)
	sql := base + " WHERE " + where
	if order := q.OrderClause(); order != "" {
		sql += " ORDER BY " + order
	}
	if q.Limit > 0 {
		sql += " LIMIT " + strconv.Itoa(q.Limit)
	}
	if q.Offset > 0 {
		sql += " OFFSET " + strconv.Itoa(q.Offset)
	}
	return sql, args
}

// mapPgError translates store errors into domain errors. Revoked grants or
// row-level policies added by operators surface as insufficient_privilege
// (42501).
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return chat.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503": // foreign_key_violation
			return fmt.Errorf("%w: %s", chat.ErrNotFound, pgErr.ConstraintName)
		case "42501": // insufficient_privilege
			return fmt.Errorf("%w: %s", chat.ErrNotAuthorized, pgErr.Message)
		}
	}
	return err
}
