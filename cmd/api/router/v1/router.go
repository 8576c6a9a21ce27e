package v1

import (
	httpHandler "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/presentation/http"
	"github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/presentation/controller"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts all version 1 API routes under /api/v1.
func RegisterRoutes(r *gin.Engine, deps httpHandler.Dependencies) *controller.ChatSocketController {
	v1 := r.Group("/api/v1")
	return httpHandler.RegisterRoutes(v1, deps)
}
