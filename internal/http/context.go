package http

import (
	"context"

	"github.com/fjod/go_shop/internal/domain"
)

type contextKey int

const (
	userKey contextKey = iota
	sessionTokenKey
)

func withUser(ctx context.Context, user *domain.User, token string) context.Context {
	ctx = context.WithValue(ctx, userKey, user)
	return context.WithValue(ctx, sessionTokenKey, token)
}

// UserFromContext returns the authenticated user, or nil for anonymous
// requests.
func UserFromContext(ctx context.Context) *domain.User {
	if u, ok := ctx.Value(userKey).(*domain.User); ok {
		return u
	}
	return nil
}

func getUserIDFromContext(ctx context.Context) string {
	if u := UserFromContext(ctx); u != nil {
		return u.ID
	}
	return ""
}

func sessionTokenFromContext(ctx context.Context) string {
	if token, ok := ctx.Value(sessionTokenKey).(string); ok {
		return token
	}
	return ""
}
