package controller

import (
	"context"
	"net/http"
	"strconv"

	"github.com/AndreiCalugar/MyCommunity/internal/infrastructure/session"
	"github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/usecase"

	"github.com/gin-gonic/gin"
)

// GetMessageController pages through a conversation's history.
type GetMessageController struct {
	UC    *usecase.GetMessageUseCase
	Guard *usecase.JoinConversationUseCase
}

func NewGetMessageController(uc *usecase.GetMessageUseCase, guard *usecase.JoinConversationUseCase) *GetMessageController {
	return &GetMessageController{UC: uc, Guard: guard}
}

func (h *GetMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID := c.Param("conversationId")

		limit, offset := 0, 0
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
				return
			}
			limit = n
		}
		if v := c.Query("offset"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be an integer"})
				return
			}
			offset = n
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		if err := h.Guard.Execute(ctx, usecase.JoinConversationInput{
			ConversationID: conversationID,
			UserID:         session.UserID(c),
		}); err != nil {
			respondError(c, err)
			return
		}

		in := usecase.GetMessageInput{ConversationID: conversationID, Limit: limit, Offset: offset}
		msgs, err := h.UC.Execute(ctx, in)
		if err != nil {
			respondError(c, err)
			return
		}

		limit, offset = usecase.NormalizePage(limit, offset)
		c.JSON(http.StatusOK, gin.H{
			"messages": msgs,
			"limit":    limit,
			"offset":   offset,
			"count":    len(msgs),
		})
	}
}
