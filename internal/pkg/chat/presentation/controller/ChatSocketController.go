package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/AndreiCalugar/MyCommunity/internal/infrastructure/metrics"
	"github.com/AndreiCalugar/MyCommunity/internal/infrastructure/realtime"
	"github.com/AndreiCalugar/MyCommunity/internal/infrastructure/session"
	chat "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/domain"
	"github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/relay"
	"github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/usecase"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ChatSocketController serves the realtime endpoint. Clients join
// conversation rooms; the first session in a room opens one relay
// subscription for it and the last one leaving closes it.
type ChatSocketController struct {
	router          *realtime.Router
	relay           *relay.Relay
	joinRoomUC      *usecase.JoinConversationUseCase
	markAsReadUC    *usecase.MarkAsReadUseCase
	logger          *zap.Logger
	metrics         *metrics.Metrics
	inflightTimeout time.Duration

	mu    sync.Mutex
	rooms map[string]*relay.Subscription
}

func NewChatSocketController(router *realtime.Router, rl *relay.Relay, join *usecase.JoinConversationUseCase, markAsRead *usecase.MarkAsReadUseCase, logger *zap.Logger, m *metrics.Metrics) *ChatSocketController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatSocketController{
		router:          router,
		relay:           rl,
		joinRoomUC:      join,
		markAsReadUC:    markAsRead,
		logger:          logger,
		metrics:         m,
		inflightTimeout: 5 * time.Second,
		rooms:           make(map[string]*relay.Subscription),
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Mobile clients send no Origin; callers are authenticated by session.
	CheckOrigin: func(*http.Request) bool { return true },
}

type inboundFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type ackFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`
}

type changeFrame struct {
	Type           string        `json:"type"`
	ConversationID string        `json:"conversation_id"`
	MessageID      string        `json:"message_id"`
	Message        *chat.Message `json:"message,omitempty"`
}

const (
	defaultReadTimeout = 60 * time.Second
	maxFrameSize       = 64 << 10
)

// Handle upgrades the request and processes frames until the client
// disconnects.
func (ctl *ChatSocketController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := session.UserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response.
			ctl.logger.Debug("websocket upgrade failed", zap.Error(err))
			return
		}

		conn := realtime.NewConnection(userID, ws)
		ctl.mu.Lock()
		ctl.closeRoomsLocked(ctl.router.Attach(conn))
		ctl.mu.Unlock()
		ctl.gauge(func(m *metrics.Metrics) { m.ActiveConnections.Inc() })
		defer func() {
			ctl.mu.Lock()
			emptied := ctl.router.Detach(conn)
			ctl.closeRoomsLocked(emptied)
			ctl.mu.Unlock()
			conn.Close(websocket.CloseNormalClosure, "session closed")
			ctl.gauge(func(m *metrics.Metrics) { m.ActiveConnections.Dec() })
		}()

		ws.SetReadLimit(maxFrameSize)
		_ = ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		})

		ctl.reply(conn, ackFrame{Type: "connected", UserID: userID})

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) &&
					!errors.Is(err, websocket.ErrCloseSent) {
					ctl.logger.Debug("websocket read ended", zap.String("user_id", userID), zap.Error(err))
				}
				return
			}

			var frame inboundFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				ctl.replyError(conn, "bad_request", "invalid payload")
				continue
			}
			if frame.ConversationID == "" {
				ctl.replyError(conn, "bad_request", "conversation_id is required")
				continue
			}

			switch frame.Type {
			case "join":
				ctl.handleJoin(c.Request.Context(), conn, frame.ConversationID)
			case "leave":
				ctl.handleLeave(conn, frame.ConversationID)
			case "read":
				ctl.handleRead(c.Request.Context(), conn, frame.ConversationID)
			default:
				ctl.replyError(conn, "unsupported_type", "unknown frame type")
			}
		}
	}
}

func (ctl *ChatSocketController) handleJoin(parent context.Context, conn *realtime.Connection, conversationID string) {
	ctx, cancel := context.WithTimeout(parent, ctl.inflightTimeout)
	defer cancel()

	err := ctl.joinRoomUC.Execute(ctx, usecase.JoinConversationInput{
		ConversationID: conversationID,
		UserID:         conn.UserID,
	})
	if err != nil {
		ctl.handleUseCaseError(conn, err)
		return
	}

	ctl.mu.Lock()
	first, err := ctl.router.Join(conversationID, conn)
	if err == nil && first {
		err = ctl.openRoomLocked(conversationID)
		if err != nil {
			ctl.router.Leave(conversationID, conn)
		}
	}
	ctl.mu.Unlock()
	if err != nil {
		ctl.logger.Warn("join room failed", zap.String("conversation_id", conversationID), zap.Error(err))
		ctl.replyError(conn, "unavailable", "realtime updates unavailable")
		return
	}

	ctl.reply(conn, ackFrame{Type: "joined", ConversationID: conversationID})
}

func (ctl *ChatSocketController) handleLeave(conn *realtime.Connection, conversationID string) {
	ctl.mu.Lock()
	if ctl.router.Leave(conversationID, conn) {
		ctl.closeRoomsLocked([]string{conversationID})
	}
	ctl.mu.Unlock()

	ctl.reply(conn, ackFrame{Type: "left", ConversationID: conversationID})
}

func (ctl *ChatSocketController) handleRead(parent context.Context, conn *realtime.Connection, conversationID string) {
	ctx, cancel := context.WithTimeout(parent, ctl.inflightTimeout)
	defer cancel()

	err := ctl.markAsReadUC.Execute(ctx, usecase.MarkAsReadInput{
		ConversationID: conversationID,
		UserID:         conn.UserID,
	})
	if err != nil {
		ctl.handleUseCaseError(conn, err)
		return
	}
	ctl.reply(conn, ackFrame{Type: "read", ConversationID: conversationID})
}

// openRoomLocked subscribes the room to the relay. Callers hold ctl.mu.
func (ctl *ChatSocketController) openRoomLocked(conversationID string) error {
	sub, err := ctl.relay.Subscribe(context.Background(), conversationID, func(ch relay.Change) {
		frame := changeFrame{
			Type:           "message." + string(ch.Kind),
			ConversationID: conversationID,
			MessageID:      ch.MessageID,
			Message:        ch.Message,
		}
		payload, err := json.Marshal(frame)
		if err != nil {
			ctl.logger.Error("encode change frame", zap.Error(err))
			return
		}
		ctl.router.Broadcast(conversationID, payload, "")
	})
	if err != nil {
		return err
	}
	ctl.rooms[conversationID] = sub
	ctl.gauge(func(m *metrics.Metrics) { m.ActiveRooms.Inc() })
	return nil
}

func (ctl *ChatSocketController) closeRoomsLocked(ids []string) {
	for _, id := range ids {
		sub, ok := ctl.rooms[id]
		if !ok {
			continue
		}
		delete(ctl.rooms, id)
		ctl.relay.Unsubscribe(sub)
		ctl.gauge(func(m *metrics.Metrics) { m.ActiveRooms.Dec() })
	}
}

// Shutdown closes every session and relay subscription.
func (ctl *ChatSocketController) Shutdown() {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	ctl.closeRoomsLocked(ctl.router.Close())
}

// OpenRooms returns the number of rooms with a live relay subscription.
func (ctl *ChatSocketController) OpenRooms() int {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	return len(ctl.rooms)
}

func (ctl *ChatSocketController) gauge(fn func(m *metrics.Metrics)) {
	if ctl.metrics != nil {
		fn(ctl.metrics)
	}
}

func (ctl *ChatSocketController) handleUseCaseError(conn *realtime.Connection, err error) {
	switch statusFor(err) {
	case http.StatusBadRequest:
		ctl.replyError(conn, "bad_request", err.Error())
	case http.StatusNotFound:
		ctl.replyError(conn, "not_found", "conversation not found")
	case http.StatusForbidden:
		ctl.replyError(conn, "forbidden", "user is not a participant in this conversation")
	case http.StatusServiceUnavailable:
		ctl.replyError(conn, "unavailable", "store temporarily unavailable")
	default:
		ctl.logger.Error("socket use case failed", zap.String("user_id", conn.UserID), zap.Error(err))
		ctl.replyError(conn, "internal_error", "unexpected persistence error")
	}
}

func (ctl *ChatSocketController) reply(conn *realtime.Connection, frame any) {
	if payload, err := json.Marshal(frame); err == nil {
		_ = conn.Send(payload)
	}
}

func (ctl *ChatSocketController) replyError(conn *realtime.Connection, code string, message string) {
	ctl.reply(conn, errorFrame{Type: "error", Code: code, Error: message})
}
