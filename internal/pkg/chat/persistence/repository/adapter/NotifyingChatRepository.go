package adapter

import (
	"context"
	"encoding/json"
	"time"

	feed "github.com/AndreiCalugar/MyCommunity/internal/infrastructure/changefeed/port"
	chat "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/domain"
	repository "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/persistence/repository/port"

	"go.uber.org/zap"
)

// MessagesTable is the table name carried by message change events.
const MessagesTable = "messages"

// NotifyingChatRepository publishes message change events after successful
// writes. It is used whenever the change feed is not fed by store triggers.
// Publish failures are logged; the write already happened.
type NotifyingChatRepository struct {
	repository.ChatRepository
	pub    feed.Publisher
	logger *zap.Logger
}

func NewNotifyingChatRepository(inner repository.ChatRepository, pub feed.Publisher, logger *zap.Logger) *NotifyingChatRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotifyingChatRepository{ChatRepository: inner, pub: pub, logger: logger}
}

func (r *NotifyingChatRepository) SaveMessage(ctx context.Context, m chat.Message) (chat.Message, error) {
	saved, err := r.ChatRepository.SaveMessage(ctx, m)
	if err != nil {
		return saved, err
	}
	r.publish(ctx, feed.Event{Table: MessagesTable, Type: feed.EventInsert, New: messageRow(saved)})
	return saved, nil
}

func (r *NotifyingChatRepository) SoftDeleteMessage(ctx context.Context, messageID string, at time.Time) error {
	if err := r.ChatRepository.SoftDeleteMessage(ctx, messageID, at); err != nil {
		return err
	}
	q, err := repository.Messages().Eq("id", messageID).Page(1, 0).Build()
	if err != nil {
		return nil
	}
	rows, err := r.ChatRepository.FindMessages(ctx, q)
	if err != nil || len(rows) == 0 {
		r.logger.Warn("changefeed: deleted message reload failed", zap.String("message_id", messageID), zap.Error(err))
		return nil
	}
	r.publish(ctx, feed.Event{Table: MessagesTable, Type: feed.EventUpdate, New: messageRow(rows[0])})
	return nil
}

func (r *NotifyingChatRepository) publish(ctx context.Context, e feed.Event) {
	if err := r.pub.Publish(ctx, e); err != nil {
		r.logger.Warn("changefeed: publish failed", zap.String("table", e.Table), zap.String("type", string(e.Type)), zap.Error(err))
	}
}

// messageRow renders m the way the database trigger renders a row.
func messageRow(m chat.Message) map[string]any {
	m.Author = nil
	b, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	var row map[string]any
	if err := json.Unmarshal(b, &row); err != nil {
		return nil
	}
	return row
}
