package controller

import (
	"context"
	"net/http"

	"github.com/AndreiCalugar/MyCommunity/internal/infrastructure/session"
	"github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/usecase"

	"github.com/gin-gonic/gin"
)

// ResolveCommunityConversationController returns a community's conversation
// and registers the caller as a participant.
type ResolveCommunityConversationController struct {
	UC *usecase.ResolveCommunityConversationUseCase
}

func NewResolveCommunityConversationController(uc *usecase.ResolveCommunityConversationUseCase) *ResolveCommunityConversationController {
	return &ResolveCommunityConversationController{UC: uc}
}

func (h *ResolveCommunityConversationController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		id, err := h.UC.Execute(ctx, usecase.ResolveCommunityConversationInput{
			CommunityID: c.Param("communityId"),
			MemberIDs:   []string{session.UserID(c)},
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversation_id": id})
	}
}
