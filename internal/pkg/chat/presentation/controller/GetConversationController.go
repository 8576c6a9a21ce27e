package controller

import (
	"context"
	"net/http"

	"github.com/AndreiCalugar/MyCommunity/internal/infrastructure/session"
	"github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/usecase"

	"github.com/gin-gonic/gin"
)

// GetConversationController serves the conversation details screen to
// participants.
type GetConversationController struct {
	UC    *usecase.GetConversationUseCase
	Guard *usecase.JoinConversationUseCase
}

func NewGetConversationController(uc *usecase.GetConversationUseCase, guard *usecase.JoinConversationUseCase) *GetConversationController {
	return &GetConversationController{UC: uc, Guard: guard}
}

func (h *GetConversationController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		conversationID := c.Param("conversationId")
		userID := session.UserID(c)
		if err := h.Guard.Execute(ctx, usecase.JoinConversationInput{ConversationID: conversationID, UserID: userID}); err != nil {
			respondError(c, err)
			return
		}

		summary, err := h.UC.Execute(ctx, usecase.GetConversationInput{
			ConversationID: conversationID,
			ViewerID:       userID,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}
