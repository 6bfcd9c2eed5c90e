package middleware

import (
	"net/http"
	"slices"

	"github.com/hongminglow/pos-backend/internal/auth"
	"github.com/hongminglow/pos-backend/internal/http/respond"
	"github.com/hongminglow/pos-backend/internal/models"
	"github.com/hongminglow/pos-backend/internal/models/dto"
)

// RequireRoles allows only users whose role is in allowed. It must run after
// Authenticate.
func RequireRoles(allowed ...models.Role) func(http.Handler) http.Handler {
	allowed = slices.Clone(allowed)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := auth.UserFromContext(r.Context())
			if !ok {
				respond.Error(w, http.StatusUnauthorized, "user not authenticated")
				return
			}
			if !slices.Contains(allowed, user.Role) {
				respond.ErrorWithData(w, http.StatusForbidden, auth.ErrForbiddenRole.Error(),
					dto.RoleDenied{RequiredRoles: allowed, CurrentRole: user.Role})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireBranch lets administrators and owners through and requires every
// other role to have a branch assigned.
func RequireBranch(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.UserFromContext(r.Context())
		if !ok {
			respond.Error(w, http.StatusUnauthorized, "user not authenticated")
			return
		}
		if !user.Role.CrossBranch() && !user.HasBranch() {
			respond.Error(w, http.StatusForbidden, auth.ErrNoBranch.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}
