package controller

import (
	"context"
	"net/http"

	"github.com/AndreiCalugar/MyCommunity/internal/infrastructure/session"
	"github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/usecase"

	"github.com/gin-gonic/gin"
)

// GetUnreadCountController serves the global unread badge.
type GetUnreadCountController struct {
	UC *usecase.GetUnreadCountUseCase
}

func NewGetUnreadCountController(uc *usecase.GetUnreadCountUseCase) *GetUnreadCountController {
	return &GetUnreadCountController{UC: uc}
}

func (h *GetUnreadCountController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		n, err := h.UC.Execute(ctx, usecase.GetUnreadCountInput{UserID: session.UserID(c)})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"unread_count": n})
	}
}
