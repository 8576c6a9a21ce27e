package controller

import (
	"context"
	"net/http"

	"github.com/AndreiCalugar/MyCommunity/internal/infrastructure/session"
	"github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/usecase"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// DeleteMessageController soft-deletes a message authored by the caller.
type DeleteMessageController struct {
	UC      *usecase.DeleteMessageUseCase
	Deleted prometheus.Counter
}

func NewDeleteMessageController(uc *usecase.DeleteMessageUseCase, deleted prometheus.Counter) *DeleteMessageController {
	return &DeleteMessageController{UC: uc, Deleted: deleted}
}

func (h *DeleteMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		if err := h.UC.Execute(ctx, usecase.DeleteMessageInput{
			MessageID: c.Param("messageId"),
			UserID:    session.UserID(c),
		}); err != nil {
			respondError(c, err)
			return
		}
		if h.Deleted != nil {
			h.Deleted.Inc()
		}
		c.Status(http.StatusNoContent)
	}
}
