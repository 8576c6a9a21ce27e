package controller

import (
	"context"
	"net/http"

	"github.com/AndreiCalugar/MyCommunity/internal/infrastructure/session"
	"github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/usecase"

	"github.com/gin-gonic/gin"
)

type MarkAsReadController struct {
	UC *usecase.MarkAsReadUseCase
}

func NewMarkAsReadController(uc *usecase.MarkAsReadUseCase) *MarkAsReadController {
	return &MarkAsReadController{UC: uc}
}

func (h *MarkAsReadController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		err := h.UC.Execute(ctx, usecase.MarkAsReadInput{
			ConversationID: c.Param("conversationId"),
			UserID:         session.UserID(c),
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
