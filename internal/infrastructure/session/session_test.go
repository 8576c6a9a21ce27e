package session_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AndreiCalugar/MyCommunity/internal/infrastructure/session"

	"github.com/gin-gonic/gin"
)

func TestAuthenticate(t *testing.T) {
	auth := session.NewAuthenticator("s3cret", true)
	token, err := auth.Issue("alice", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	expired, _ := auth.Issue("alice", -time.Hour)
	foreign, _ := session.NewAuthenticator("other", false).Issue("mallory", time.Hour)

	tests := []struct {
		name    string
		setup   func(r *http.Request)
		want    string
		wantErr bool
	}{
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, "alice", false},
		{"query token", func(r *http.Request) { r.URL.RawQuery = "access_token=" + token }, "alice", false},
		{"user header", func(r *http.Request) { r.Header.Set(session.UserHeader, " bob ") }, "bob", false},
		{"token wins over header", func(r *http.Request) {
			r.Header.Set("Authorization", "bearer "+token)
			r.Header.Set(session.UserHeader, "bob")
		}, "alice", false},
		{"expired token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+expired) }, "", true},
		{"wrong key", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+foreign) }, "", true},
		{"nothing", func(*http.Request) {}, "", true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(r)
			got, err := auth.Authenticate(r)
			if tt.wantErr {
				if !errors.Is(err, session.ErrNoSession) {
					t.Fatalf("expected ErrNoSession, got %q %v", got, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("got %q %v, want %q", got, err, tt.want)
			}
		})
	}
}

func TestHeaderSessionsCanBeDisabled(t *testing.T) {
	auth := session.NewAuthenticator("", false)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(session.UserHeader, "bob")
	if _, err := auth.Authenticate(r); err == nil {
		t.Fatalf("header sessions must be rejected when disabled")
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := session.NewAuthenticator("", true)
	r := gin.New()
	r.Use(auth.Middleware())
	r.GET("/me", func(c *gin.Context) {
		fromCtx, _ := session.FromContext(c.Request.Context())
		c.String(http.StatusOK, session.UserID(c)+"|"+fromCtx)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(session.UserHeader, "carol")
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "carol|carol" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
