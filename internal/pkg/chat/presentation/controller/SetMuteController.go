package controller

import (
	"context"
	"net/http"

	"github.com/AndreiCalugar/MyCommunity/internal/infrastructure/session"
	"github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/usecase"

	"github.com/gin-gonic/gin"
)

type SetMuteController struct {
	UC *usecase.SetMuteUseCase
}

func NewSetMuteController(uc *usecase.SetMuteUseCase) *SetMuteController {
	return &SetMuteController{UC: uc}
}

type setMuteRequest struct {
	Muted *bool `json:"muted" binding:"required"`
}

func (h *SetMuteController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req setMuteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		err := h.UC.Execute(ctx, usecase.SetMuteInput{
			ConversationID: c.Param("conversationId"),
			UserID:         session.UserID(c),
			Muted:          *req.Muted,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"muted": *req.Muted})
	}
}
