package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hongminglow/pos-backend/internal/auth"
	"github.com/hongminglow/pos-backend/internal/http/respond"
	"github.com/hongminglow/pos-backend/internal/models"
)

const bearerPrefix = "Bearer "

// Authenticator resolves an access token to the user's current record.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (models.User, error)
}

// Authenticate requires a valid bearer access token for an existing, active
// user and attaches that user to the request context.
func Authenticate(a Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				respond.Error(w, http.StatusUnauthorized, "token not provided")
				return
			}

			user, err := a.Authenticate(r.Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrInvalidToken):
					respond.Error(w, http.StatusUnauthorized, "invalid or expired token")
				case errors.Is(err, auth.ErrUserNotFound):
					respond.Error(w, http.StatusUnauthorized, "user not found")
				case errors.Is(err, auth.ErrInactiveUser):
					respond.Error(w, http.StatusForbidden, "inactive user")
				default:
					logger.ErrorContext(r.Context(), "authentication failed", "error", err,
						"request_id", RequestIDFromContext(r.Context()))
					respond.Error(w, http.StatusInternalServerError, "authentication error")
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), user)))
		})
	}
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}
