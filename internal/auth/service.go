package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hongminglow/pos-backend/internal/models"
	"github.com/hongminglow/pos-backend/internal/storage"
)

// Outcome labels reported to a Recorder.
const (
	OutcomeSuccess  = "success"
	OutcomeInvalid  = "invalid"
	OutcomeInactive = "inactive"
	OutcomeError    = "error"
)

// Recorder receives auth flow outcomes, typically for metrics.
type Recorder interface {
	RecordLogin(outcome string)
	RecordRefresh(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordLogin(string)   {}
func (nopRecorder) RecordRefresh(string) {}

// Credentials is the login input together with request metadata for auditing.
type Credentials struct {
	Email     string
	Password  string
	IP        string
	UserAgent string
}

// LoginResult is returned on successful login.
type LoginResult struct {
	User         models.User
	AccessToken  string
	RefreshToken string
}

// Service runs the login, refresh, logout and authentication flows.
type Service struct {
	users    storage.UserStore
	audit    storage.AuditStore
	tokens   *TokenManager
	hasher   *Hasher
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithLogger sets the logger used for best-effort write failures.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRecorder sets the outcome recorder.
func WithRecorder(r Recorder) ServiceOption {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithServiceClock overrides the time source used for last-access and audit stamps.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires the flows to their collaborators.
func NewService(users storage.UserStore, audit storage.AuditStore, tokens *TokenManager, hasher *Hasher, opts ...ServiceOption) *Service {
	s := &Service{
		users:    users,
		audit:    audit,
		tokens:   tokens,
		hasher:   hasher,
		logger:   slog.Default(),
		recorder: nopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login verifies credentials and issues an access/refresh token pair.
func (s *Service) Login(ctx context.Context, in Credentials) (LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return LoginResult{}, ErrMissingCredentials
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.hasher.VerifyAbsent(in.Password)
			s.recorder.RecordLogin(OutcomeInvalid)
			return LoginResult{}, ErrInvalidCredentials
		}
		s.recorder.RecordLogin(OutcomeError)
		return LoginResult{}, fmt.Errorf("find user by email: %w", err)
	}
	if !user.Active {
		s.recorder.RecordLogin(OutcomeInactive)
		return LoginResult{}, ErrInactiveUser
	}
	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		s.recorder.RecordLogin(OutcomeInvalid)
		return LoginResult{}, ErrInvalidCredentials
	}

	payload := PayloadFor(user)
	access, err := s.tokens.IssueAccessToken(payload)
	if err != nil {
		s.recorder.RecordLogin(OutcomeError)
		return LoginResult{}, err
	}
	refresh, err := s.tokens.IssueRefreshToken(payload)
	if err != nil {
		s.recorder.RecordLogin(OutcomeError)
		return LoginResult{}, err
	}

	now := s.now()
	if err := s.users.TouchLastAccess(ctx, user.ID, now); err != nil {
		s.logger.WarnContext(ctx, "update last access failed", "user_id", user.ID, "error", err)
	} else {
		at := now.UTC()
		user.LastAccessAt = &at
	}
	s.appendAudit(ctx, user.ID, models.ActionLogin, in.IP, in.UserAgent, now)

	s.recorder.RecordLogin(OutcomeSuccess)
	return LoginResult{User: user, AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh exchanges a valid refresh token for a new access token. The refresh
// token itself is not rotated.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return "", ErrMissingRefreshToken
	}
	payload, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		s.recorder.RecordRefresh(OutcomeInvalid)
		return "", ErrInvalidToken
	}
	user, err := s.currentUser(ctx, payload.UserID)
	if err != nil {
		switch KindOf(err) {
		case KindAuthentication:
			s.recorder.RecordRefresh(OutcomeInvalid)
		case KindAuthorization:
			s.recorder.RecordRefresh(OutcomeInactive)
		default:
			s.recorder.RecordRefresh(OutcomeError)
		}
		return "", err
	}

	access, err := s.tokens.IssueAccessToken(PayloadFor(user))
	if err != nil {
		s.recorder.RecordRefresh(OutcomeError)
		return "", err
	}
	s.recorder.RecordRefresh(OutcomeSuccess)
	return access, nil
}

// Authenticate verifies an access token and resolves the user's current state.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (models.User, error) {
	payload, err := s.tokens.VerifyAccessToken(accessToken)
	if err != nil {
		return models.User{}, ErrInvalidToken
	}
	return s.currentUser(ctx, payload.UserID)
}

// Logout records the logout. Tokens stay valid until they expire; discarding
// them is up to the client.
func (s *Service) Logout(ctx context.Context, user models.User, ip, userAgent string) {
	s.appendAudit(ctx, user.ID, models.ActionLogout, ip, userAgent, s.now())
}

func (s *Service) currentUser(ctx context.Context, id int64) (models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("find user by id: %w", err)
	}
	if !user.Active {
		return models.User{}, ErrInactiveUser
	}
	return user, nil
}

func (s *Service) appendAudit(ctx context.Context, userID int64, action, ip, userAgent string, at time.Time) {
	event := models.AuditEvent{
		UserID:     userID,
		Action:     action,
		Resource:   models.ResourceUsers,
		IP:         ip,
		UserAgent:  userAgent,
		OccurredAt: at,
	}
	if err := s.audit.Append(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit append failed", "user_id", userID, "action", action, "error", err)
	}
}
