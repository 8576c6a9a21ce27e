package http

import (
	"github.com/AndreiCalugar/MyCommunity/internal/infrastructure/metrics"
	qport "github.com/AndreiCalugar/MyCommunity/internal/infrastructure/queue/port"
	"github.com/AndreiCalugar/MyCommunity/internal/infrastructure/ratelimit"
	"github.com/AndreiCalugar/MyCommunity/internal/infrastructure/realtime"
	"github.com/AndreiCalugar/MyCommunity/internal/infrastructure/session"
	"github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/relay"
	"github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/usecase"
	repository "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/persistence/repository/port"
	"github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/presentation/controller"
	"github.com/AndreiCalugar/MyCommunity/internal/pkg/deeplink"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Dependencies are the collaborators the chat endpoints are built from.
// Limiter and Metrics are optional.
type Dependencies struct {
	Repo     repository.ChatRepository
	Profiles repository.ProfileRepository
	Queue    qport.Client
	Router   *realtime.Router
	Relay    *relay.Relay
	Auth     *session.Authenticator
	Limiter  *ratelimit.Limiter
	Links    deeplink.Builder
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// RegisterRoutes constructs per-endpoint controllers and binds them under g.
// Every route requires a session. The returned socket controller owns the
// realtime rooms and must be shut down with the server.
func RegisterRoutes(g *gin.RouterGroup, d Dependencies) *controller.ChatSocketController {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	join := usecase.NewJoinConversationUseCase(d.Repo)
	markAsRead := usecase.NewMarkAsReadUseCase(d.Repo, logger)

	resolveDirectCtl := controller.NewResolveDirectConversationController(usecase.NewResolveDirectConversationUseCase(d.Repo, logger))
	resolveCommunityCtl := controller.NewResolveCommunityConversationController(usecase.NewResolveCommunityConversationUseCase(d.Repo, logger))
	listCtl := controller.NewListConversationsController(usecase.NewListConversationsUseCase(d.Repo, d.Profiles, logger))
	getCtl := controller.NewGetConversationController(usecase.NewGetConversationUseCase(d.Repo, d.Profiles, logger), join)
	getMsgCtl := controller.NewGetMessageController(usecase.NewGetMessageUseCase(d.Repo, d.Profiles, logger), join)
	markReadCtl := controller.NewMarkAsReadController(markAsRead)
	muteCtl := controller.NewSetMuteController(usecase.NewSetMuteUseCase(d.Repo))
	unreadCtl := controller.NewGetUnreadCountController(usecase.NewGetUnreadCountUseCase(d.Repo, logger))
	linkCtl := controller.NewResolveLinkController(join, d.Links)
	syncCtl := controller.NewSyncCommunityMemberController(d.Queue)
	socketCtl := controller.NewChatSocketController(d.Router, d.Relay, join, markAsRead, logger, d.Metrics)

	sendMsgCtl := controller.NewSendMessageController(usecase.NewSendMessageUseCase(d.Repo, d.Profiles, logger), join, nil)
	deleteMsgCtl := controller.NewDeleteMessageController(usecase.NewDeleteMessageUseCase(d.Repo), nil)
	if d.Metrics != nil {
		sendMsgCtl.Sent = d.Metrics.MessagesSent
		deleteMsgCtl.Deleted = d.Metrics.MessagesDeleted
	}

	sendChain := []gin.HandlerFunc{}
	if d.Limiter != nil {
		sendChain = append(sendChain, d.Limiter.Middleware(session.UserID))
	}
	sendChain = append(sendChain, sendMsgCtl.Handle())

	g.Use(d.Auth.Middleware())

	// POST /api/v1/conversations/direct -> open the caller's DM with user_id
	g.POST("/conversations/direct", resolveDirectCtl.Handle())

	// GET /api/v1/conversations -> inbox, most recently active first
	g.GET("/conversations", listCtl.Handle())

	// GET /api/v1/conversations/:conversationId -> conversation details
	g.GET("/conversations/:conversationId", getCtl.Handle())

	// GET /api/v1/conversations/:conversationId/messages?limit=&offset=
	g.GET("/conversations/:conversationId/messages", getMsgCtl.Handle())

	// POST /api/v1/conversations/:conversationId/messages -> send a message
	g.POST("/conversations/:conversationId/messages", sendChain...)

	// POST /api/v1/conversations/:conversationId/read -> mark as read
	g.POST("/conversations/:conversationId/read", markReadCtl.Handle())

	// PUT /api/v1/conversations/:conversationId/mute -> toggle notifications
	g.PUT("/conversations/:conversationId/mute", muteCtl.Handle())

	// DELETE /api/v1/messages/:messageId -> soft delete
	g.DELETE("/messages/:messageId", deleteMsgCtl.Handle())

	// GET /api/v1/me/unread -> global unread badge
	g.GET("/me/unread", unreadCtl.Handle())

	// POST /api/v1/communities/:communityId/conversation -> community chat
	g.POST("/communities/:communityId/conversation", resolveCommunityCtl.Handle())

	// POST /api/v1/communities/:communityId/members/:userId -> queue member sync
	g.POST("/communities/:communityId/members/:userId", syncCtl.Handle())

	// GET /api/v1/links/resolve?url= -> deep link to in-app route
	g.GET("/links/resolve", linkCtl.Handle())

	// GET /api/v1/chat/ws -> websocket endpoint for realtime chat
	g.GET("/chat/ws", socketCtl.Handle())

	return socketCtl
}
