package controller

import (
	"context"
	"net/http"

	"github.com/AndreiCalugar/MyCommunity/internal/infrastructure/session"
	"github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/usecase"

	"github.com/gin-gonic/gin"
)

// ResolveDirectConversationController opens (or creates) the caller's direct
// conversation with another user.
type ResolveDirectConversationController struct {
	UC *usecase.ResolveDirectConversationUseCase
}

func NewResolveDirectConversationController(uc *usecase.ResolveDirectConversationUseCase) *ResolveDirectConversationController {
	return &ResolveDirectConversationController{UC: uc}
}

type resolveDirectRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

func (h *ResolveDirectConversationController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req resolveDirectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		id, err := h.UC.Execute(ctx, usecase.ResolveDirectConversationInput{
			UserID:      session.UserID(c),
			OtherUserID: req.UserID,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversation_id": id})
	}
}
