package controller

import (
	"context"
	"net/http"

	"github.com/AndreiCalugar/MyCommunity/internal/infrastructure/session"
	"github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/usecase"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// SendMessageController appends a message authored by the caller.
type SendMessageController struct {
	UC    *usecase.SendMessageUseCase
	Guard *usecase.JoinConversationUseCase
	// Sent is optional.
	Sent prometheus.Counter
}

func NewSendMessageController(uc *usecase.SendMessageUseCase, guard *usecase.JoinConversationUseCase, sent prometheus.Counter) *SendMessageController {
	return &SendMessageController{UC: uc, Guard: guard, Sent: sent}
}

// sendMessageRequest is the request body. An empty body is a valid message.
type sendMessageRequest struct {
	Body string `json:"body"`
}

func (h *SendMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		conversationID := c.Param("conversationId")
		userID := session.UserID(c)

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		if err := h.Guard.Execute(ctx, usecase.JoinConversationInput{ConversationID: conversationID, UserID: userID}); err != nil {
			respondError(c, err)
			return
		}

		msg, err := h.UC.Execute(ctx, usecase.SendMessageInput{
			ConversationID: conversationID,
			UserID:         userID,
			Body:           req.Body,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		if h.Sent != nil {
			h.Sent.Inc()
		}
		c.JSON(http.StatusCreated, msg)
	}
}
