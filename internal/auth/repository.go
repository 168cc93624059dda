package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatekeeper-auth/gatekeeper/internal/platform/httpx"
)

const uniqueViolation = "23505"

// Repository defines persistence operations for the credential store.
type Repository interface {
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	RecordLogin(ctx context.Context, userID uuid.UUID, ip, userAgent string) error
	ListLoginEvents(ctx context.Context, userID uuid.UUID, limit, offset int) ([]LoginEvent, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// CreateUser inserts a new account row.
func (r *PGRepository) CreateUser(ctx context.Context, username, passwordHash string) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, username, pwd_hash)
		VALUES ($1, $2, $3)
		RETURNING id, username, pwd_hash, is_superuser, date_joined, terminate_date`,
		uuid.New(), username, passwordHash)
	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%w: username is already in use", httpx.ErrDuplicate)
		}
		return nil, fmt.Errorf("auth: create user: %w", err)
	}
	return user, nil
}

// FindByUsername fetches a user by its unique username.
func (r *PGRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, pwd_hash, is_superuser, date_joined, terminate_date
		FROM users WHERE username = $1`, username)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, fmt.Errorf("auth: find by username: %w", err)
	}
	return user, nil
}

// FindByID fetches a user by identifier.
func (r *PGRepository) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, pwd_hash, is_superuser, date_joined, terminate_date
		FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, fmt.Errorf("auth: find by id: %w", err)
	}
	return user, nil
}

// UpdatePassword replaces the stored hash.
func (r *PGRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET pwd_hash = $2, updated_at = now() WHERE id = $1`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("auth: update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// RecordLogin appends a device row for the login-history endpoint.
func (r *PGRepository) RecordLogin(ctx context.Context, userID uuid.UUID, ip, userAgent string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users_device (id, user_id, ip, user_agent)
		VALUES ($1, $2, $3, $4)`, uuid.New(), userID, ip, userAgent)
	if err != nil {
		return fmt.Errorf("auth: record login: %w", err)
	}
	return nil
}

// ListLoginEvents returns login history newest-first.
func (r *PGRepository) ListLoginEvents(ctx context.Context, userID uuid.UUID, limit, offset int) ([]LoginEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, ip, user_agent, created_at
		FROM users_device
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("auth: list login events: %w", err)
	}
	defer rows.Close()

	var events []LoginEvent
	for rows.Next() {
		var ev LoginEvent
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.IP, &ev.UserAgent, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("auth: scan login event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var user User
	if err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.IsSuperuser, &user.DateJoined, &user.TerminateDate); err != nil {
		return nil, err
	}
	return &user, nil
}

var _ Repository = (*PGRepository)(nil)
