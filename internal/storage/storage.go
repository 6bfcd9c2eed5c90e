package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hongminglow/pos-backend/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// UserStore captures the user lookups the auth flows need.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id int64) (models.User, error)
	TouchLastAccess(ctx context.Context, id int64, at time.Time) error
}

// AuditStore appends session events.
type AuditStore interface {
	Append(ctx context.Context, event models.AuditEvent) error
}

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
