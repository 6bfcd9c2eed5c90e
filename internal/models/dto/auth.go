package dto

import "github.com/hongminglow/pos-backend/internal/models"

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User         models.User `json:"user"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// RoleDenied is attached to 403 responses from the role gate.
type RoleDenied struct {
	RequiredRoles []models.Role `json:"required_roles"`
	CurrentRole   models.Role   `json:"current_role"`
}
