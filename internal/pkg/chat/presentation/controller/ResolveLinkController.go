package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/AndreiCalugar/MyCommunity/internal/infrastructure/session"
	chat "github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/domain"
	"github.com/AndreiCalugar/MyCommunity/internal/pkg/chat/application/usecase"
	"github.com/AndreiCalugar/MyCommunity/internal/pkg/deeplink"

	"github.com/gin-gonic/gin"
)

// ResolveLinkController parses a shared URL into an in-app route. Chat links
// are only routed when the caller participates in the conversation.
type ResolveLinkController struct {
	Guard *usecase.JoinConversationUseCase
	Links deeplink.Builder
}

func NewResolveLinkController(guard *usecase.JoinConversationUseCase, links deeplink.Builder) *ResolveLinkController {
	return &ResolveLinkController{Guard: guard, Links: links}
}

type resolvedLink struct {
	deeplink.Link
	Route     string `json:"route,omitempty"`
	ShareURL  string `json:"share_url,omitempty"`
	AppLink   string `json:"app_link,omitempty"`
	Available bool   `json:"available"`
}

func (h *ResolveLinkController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Query("url")
		if raw == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
			return
		}

		link := deeplink.Parse(raw)
		out := resolvedLink{Link: link, Route: deeplink.Route(link)}
		if out.Route == "" {
			c.JSON(http.StatusOK, out)
			return
		}
		out.Available = true
		out.AppLink = h.Links.AppLink(link.Kind, link.ID)
		if !link.IsConversation() {
			out.ShareURL = h.Links.ShareURL(link.Kind, link.ID)
		}

		if link.IsConversation() {
			ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
			defer cancel()

			err := h.Guard.Execute(ctx, usecase.JoinConversationInput{ConversationID: link.ID, UserID: session.UserID(c)})
			switch {
			case err == nil:
			case errors.Is(err, chat.ErrNotParticipant), errors.Is(err, chat.ErrNotFound):
				out.Available = false
				out.Route = ""
			default:
				respondError(c, err)
				return
			}
		}
		c.JSON(http.StatusOK, out)
	}
}
