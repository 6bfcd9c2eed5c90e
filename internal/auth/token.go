package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hongminglow/pos-backend/internal/models"
)

const (
	DefaultAccessTTL  = 24 * time.Hour
	DefaultRefreshTTL = 7 * 24 * time.Hour
	DefaultIssuer     = "pos-backend"

	typeAccess  = "access"
	typeRefresh = "refresh"
)

// TokenPayload is the identity carried by both access and refresh tokens.
type TokenPayload struct {
	UserID   int64
	Email    string
	Role     models.Role
	BranchID *int64
}

// PayloadFor builds the token payload for user as it is right now.
func PayloadFor(user models.User) TokenPayload {
	return TokenPayload{
		UserID:   user.ID,
		Email:    user.Email,
		Role:     user.Role,
		BranchID: user.BranchID,
	}
}

type claims struct {
	UserID   int64       `json:"id"`
	Email    string      `json:"email"`
	Role     models.Role `json:"role"`
	BranchID *int64      `json:"branch_id"`
	Type     string      `json:"typ"`
	jwt.RegisteredClaims
}

// TokenConfig holds the secrets and lifetimes for both token classes.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

type signingKey struct {
	typ    string
	secret []byte
	ttl    time.Duration
}

// TokenManager issues and verifies signed JWTs. Access and refresh tokens are
// signed with independent secrets.
type TokenManager struct {
	access  signingKey
	refresh signingKey
	issuer  string
	now     func() time.Time
}

// TokenOption configures a TokenManager.
type TokenOption func(*TokenManager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) TokenOption {
	return func(t *TokenManager) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTokenManager validates cfg and returns a manager. Zero lifetimes and an
// empty issuer fall back to the package defaults.
func NewTokenManager(cfg TokenConfig, opts ...TokenOption) (*TokenManager, error) {
	accessSecret := strings.TrimSpace(cfg.AccessSecret)
	refreshSecret := strings.TrimSpace(cfg.RefreshSecret)
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("access and refresh secrets are required")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessTTL < 0 || cfg.RefreshTTL < 0 {
		return nil, errors.New("token lifetimes must be positive")
	}

	t := &TokenManager{
		access:  signingKey{typ: typeAccess, secret: []byte(accessSecret), ttl: cfg.AccessTTL},
		refresh: signingKey{typ: typeRefresh, secret: []byte(refreshSecret), ttl: cfg.RefreshTTL},
		issuer:  strings.TrimSpace(cfg.Issuer),
		now:     time.Now,
	}
	if t.access.ttl == 0 {
		t.access.ttl = DefaultAccessTTL
	}
	if t.refresh.ttl == 0 {
		t.refresh.ttl = DefaultRefreshTTL
	}
	if t.issuer == "" {
		t.issuer = DefaultIssuer
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// IssueAccessToken signs an access token for payload.
func (t *TokenManager) IssueAccessToken(p TokenPayload) (string, error) {
	return t.issue(p, t.access)
}

// IssueRefreshToken signs a refresh token for payload.
func (t *TokenManager) IssueRefreshToken(p TokenPayload) (string, error) {
	return t.issue(p, t.refresh)
}

// VerifyAccessToken returns the payload of a valid access token, or
// ErrInvalidToken.
func (t *TokenManager) VerifyAccessToken(raw string) (TokenPayload, error) {
	return t.verify(raw, t.access)
}

// VerifyRefreshToken returns the payload of a valid refresh token, or
// ErrInvalidToken.
func (t *TokenManager) VerifyRefreshToken(raw string) (TokenPayload, error) {
	return t.verify(raw, t.refresh)
}

func (t *TokenManager) issue(p TokenPayload, key signingKey) (string, error) {
	if p.UserID == 0 {
		return "", errors.New("token payload requires a user id")
	}
	now := t.now()
	c := claims{
		UserID:   p.UserID,
		Email:    p.Email,
		Role:     p.Role,
		BranchID: p.BranchID,
		Type:     key.typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   strconv.FormatInt(p.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(key.ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(key.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", key.typ, err)
	}
	return signed, nil
}

func (t *TokenManager) verify(raw string, key signingKey) (TokenPayload, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return TokenPayload{}, ErrInvalidToken
	}
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return key.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return TokenPayload{}, ErrInvalidToken
	}
	if c.Type != key.typ || c.UserID == 0 || c.Subject != strconv.FormatInt(c.UserID, 10) {
		return TokenPayload{}, ErrInvalidToken
	}
	return TokenPayload{
		UserID:   c.UserID,
		Email:    c.Email,
		Role:     c.Role,
		BranchID: c.BranchID,
	}, nil
}
