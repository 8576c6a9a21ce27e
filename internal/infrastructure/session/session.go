// Package session resolves the calling user of a request. Core operations
// take the user id explicitly; this package is the only place it is derived.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// UserHeader carries the user id when header sessions are allowed.
	UserHeader = "X-User-ID"
	// TokenQuery carries the bearer token for websocket upgrades, where
	// browsers cannot set headers.
	TokenQuery = "access_token"

	ginKey = "session.user_id"
)

var ErrNoSession = errors.New("session: no authenticated user")

type ctxKey struct{}

// WithUser returns ctx carrying userID.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// FromContext returns the user id stored by WithUser.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// Authenticator validates HS256 tokens whose sub claim is the user id.
type Authenticator struct {
	secret          []byte
	allowUserHeader bool
}

func NewAuthenticator(secret string, allowUserHeader bool) *Authenticator {
	return &Authenticator{secret: []byte(secret), allowUserHeader: allowUserHeader}
}

// Authenticate resolves the user of r from the Authorization header, the
// access_token query parameter or, when allowed, the X-User-ID header.
func (a *Authenticator) Authenticate(r *http.Request) (string, error) {
	token := bearer(r.Header.Get("Authorization"))
	if token == "" {
		token = r.URL.Query().Get(TokenQuery)
	}
	if token != "" {
		return a.verify(token)
	}
	if a.allowUserHeader {
		if id := strings.TrimSpace(r.Header.Get(UserHeader)); id != "" {
			return id, nil
		}
	}
	return "", ErrNoSession
}

func (a *Authenticator) verify(raw string) (string, error) {
	if len(a.secret) == 0 {
		return "", fmt.Errorf("%w: token auth is not configured", ErrNoSession)
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", ErrNoSession)
	}
	return claims.Subject, nil
}

// Issue signs a token for userID. It is used by tests and local tooling.
func (a *Authenticator) Issue(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Middleware rejects requests without a session and stores the user id in
// both the gin and the request context.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := a.Authenticate(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(ginKey, userID)
		c.Request = c.Request.WithContext(WithUser(c.Request.Context(), userID))
		c.Next()
	}
}

// UserID returns the user stored by Middleware.
func UserID(c *gin.Context) string {
	return c.GetString(ginKey)
}

func bearer(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
