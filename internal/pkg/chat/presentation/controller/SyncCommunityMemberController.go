package controller

import (
	"context"
	"net/http"
	"strings"

	queueport "github.com/AndreiCalugar/MyCommunity/internal/infrastructure/queue/port"
	"github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/task"

	"github.com/gin-gonic/gin"
)

// SyncCommunityMemberController enqueues adding a community member to the
// community conversation. It is called by the community service when a user
// joins.
type SyncCommunityMemberController struct {
	Q queueport.Client
}

func NewSyncCommunityMemberController(client queueport.Client) *SyncCommunityMemberController {
	return &SyncCommunityMemberController{Q: client}
}

func (h *SyncCommunityMemberController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		communityID := strings.TrimSpace(c.Param("communityId"))
		userID := strings.TrimSpace(c.Param("userId"))
		if communityID == "" || userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "communityId and userId are required"})
			return
		}

		t, err := task.NewSyncCommunityMemberTask(communityID, userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode task payload"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		opts := queueport.EnqueueOption{Queue: "chat", MaxRetry: 20}
		id, err := h.Q.Enqueue(ctx, t, opts)
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to enqueue member sync"})
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"status":       "queued",
			"task_id":      id,
			"community_id": communityID,
			"user_id":      userID,
		})
	}
}
