package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hongminglow/pos-backend/internal/auth"
	"github.com/hongminglow/pos-backend/internal/http/respond"
	"github.com/hongminglow/pos-backend/internal/middleware"
	"github.com/hongminglow/pos-backend/internal/models/dto"
)

// AuthHandler owns the login, refresh, profile and logout endpoints.
type AuthHandler struct {
	svc        *auth.Service
	logger     *slog.Logger
	trustProxy bool
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(svc *auth.Service, logger *slog.Logger, trustProxy bool) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger, trustProxy: trustProxy}
}

// Register attaches auth routes to r. Profile and logout run behind
// authenticate.
func (h *AuthHandler) Register(r chi.Router, authenticate func(http.Handler) http.Handler) {
	r.Post("/login", h.handleLogin)
	r.Post("/refresh", h.handleRefresh)
	r.Group(func(r chi.Router) {
		r.Use(authenticate)
		r.Get("/profile", h.handleProfile)
		r.Get("/perfil", h.handleProfile)
		r.Post("/logout", h.handleLogout)
	})
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.Login(r.Context(), auth.Credentials{
		Email:     req.Email,
		Password:  req.Password,
		IP:        middleware.ClientIP(r, h.trustProxy),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		if errors.Is(err, auth.ErrInactiveUser) {
			respond.Error(w, http.StatusForbidden, "inactive user, contact an administrator")
			return
		}
		h.fail(w, r, err, "failed to log in")
		return
	}
	respond.JSON(w, http.StatusOK, "login successful", dto.LoginResponse{
		User:         res.User,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
	})
}

func (h *AuthHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req dto.RefreshRequest
	if !h.decode(w, r, &req) {
		return
	}
	access, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			respond.Error(w, http.StatusUnauthorized, "invalid or expired refresh token")
			return
		}
		h.fail(w, r, err, "failed to refresh token")
		return
	}
	respond.JSON(w, http.StatusOK, "token refreshed", dto.RefreshResponse{AccessToken: access})
}

func (h *AuthHandler) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "user not authenticated")
		return
	}
	respond.JSON(w, http.StatusOK, "profile", user)
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "user not authenticated")
		return
	}
	h.svc.Logout(r.Context(), user, middleware.ClientIP(r, h.trustProxy), r.UserAgent())
	respond.JSON(w, http.StatusOK, "logout successful", struct{}{})
}

// decode reads a JSON body into dst. An empty body decodes to the zero value
// so missing fields surface as validation errors.
func (h *AuthHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respond.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
	return false
}

func (h *AuthHandler) fail(w http.ResponseWriter, r *http.Request, err error, internalMessage string) {
	switch auth.KindOf(err) {
	case auth.KindValidation:
		respond.Error(w, http.StatusBadRequest, err.Error())
	case auth.KindAuthentication:
		respond.Error(w, http.StatusUnauthorized, err.Error())
	case auth.KindAuthorization:
		respond.Error(w, http.StatusForbidden, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), internalMessage, "error", err,
			"request_id", middleware.RequestIDFromContext(r.Context()))
		respond.Error(w, http.StatusInternalServerError, internalMessage)
	}
}
