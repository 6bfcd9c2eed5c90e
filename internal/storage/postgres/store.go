package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/hongminglow/pos-backend/internal/models"
	"github.com/hongminglow/pos-backend/internal/storage"
)

// Ensure Store satisfies the storage interfaces at compile time.
var (
	_ storage.UserStore  = (*Store)(nil)
	_ storage.AuditStore = (*Store)(nil)
	_ storage.Pinger     = (*Store)(nil)
)

// PoolOptions tunes the connection pool. Zero values keep pgxpool defaults.
type PoolOptions struct {
	MaxConns        int32
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// Store provides Postgres-backed persistence for users and audit events.
type Store struct {
	pool *pgxpool.Pool
	db   *sql.DB
}

// NewStore opens a pool against databaseURL and verifies connectivity.
func NewStore(ctx context.Context, databaseURL string, opts PoolOptions) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = opts.MaxConnIdleTime
	}
	if opts.ConnectTimeout > 0 {
		cfg.ConnConfig.ConnectTimeout = opts.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Store{pool: pool, db: stdlib.OpenDBFromPool(pool)}
	if err := s.Ping(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return s, nil
}

// NewFromDB wraps an existing *sql.DB. The caller owns its lifecycle.
func NewFromDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close releases database resources.
func (s *Store) Close() {
	if s.db != nil && s.pool != nil {
		_ = s.db.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const selectUser = `
	SELECT u.id, u.nombre, u.apellido, u.email, u.telefono, u.password_hash, u.rol,
	       u.sucursal_id, s.nombre, u.activo, u.ultimo_acceso
	FROM usuarios u
	LEFT JOIN sucursales s ON u.sucursal_id = s.id
`

// FindByEmail fetches a user by lower-cased email address.
func (s *Store) FindByEmail(ctx context.Context, email string) (models.User, error) {
	row := s.db.QueryRowContext(ctx, selectUser+`WHERE lower(u.email) = $1`, email)
	return scanUser(row)
}

// FindByID fetches a user by primary key.
func (s *Store) FindByID(ctx context.Context, id int64) (models.User, error) {
	row := s.db.QueryRowContext(ctx, selectUser+`WHERE u.id = $1`, id)
	return scanUser(row)
}

// TouchLastAccess records the time of the user's latest login.
func (s *Store) TouchLastAccess(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE usuarios SET ultimo_acceso = $1 WHERE id = $2`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("update last access: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update last access: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (models.User, error) {
	var (
		user       models.User
		lastName   sql.NullString
		phone      sql.NullString
		role       string
		branchID   sql.NullInt64
		branchName sql.NullString
		lastAccess sql.NullTime
	)
	err := row.Scan(&user.ID, &user.FirstName, &lastName, &user.Email, &phone, &user.PasswordHash,
		&role, &branchID, &branchName, &user.Active, &lastAccess)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, storage.ErrNotFound
		}
		return models.User{}, fmt.Errorf("scan user: %w", err)
	}
	user.LastName = lastName.String
	user.Phone = phone.String
	user.Role = models.Role(role)
	if branchID.Valid {
		id := branchID.Int64
		user.BranchID = &id
	}
	if branchName.Valid {
		name := branchName.String
		user.BranchName = &name
	}
	if lastAccess.Valid {
		at := lastAccess.Time
		user.LastAccessAt = &at
	}
	return user, nil
}
