package auth

import (
	"context"

	"github.com/hongminglow/pos-backend/internal/models"
)

type userContextKey struct{}

// WithUser attaches the authenticated user to the context.
func WithUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, &user)
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (models.User, bool) {
	if ctx == nil {
		return models.User{}, false
	}
	u, ok := ctx.Value(userContextKey{}).(*models.User)
	if !ok || u == nil {
		return models.User{}, false
	}
	return *u, true
}
