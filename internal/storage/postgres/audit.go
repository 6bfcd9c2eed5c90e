package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hongminglow/pos-backend/internal/models"
)

// Append inserts a row into the audit log.
func (s *Store) Append(ctx context.Context, event models.AuditEvent) error {
	at := event.OccurredAt
	if at.IsZero() {
		at = time.Now()
	}
	const query = `
		INSERT INTO auditoria (usuario_id, accion, tabla, ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.UserID, event.Action, event.Resource,
		nullString(event.IP), nullString(event.UserAgent), at.UTC())
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
