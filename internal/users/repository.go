package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatekeeper-auth/gatekeeper/internal/platform/httpx"
)

// Repository defines persistence operations for profiles.
type Repository interface {
	UserExists(ctx context.Context, userID uuid.UUID) (bool, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error)
	Insert(ctx context.Context, profile *Profile) error
	Update(ctx context.Context, profile *Profile) error
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// UserExists reports whether the referenced user row exists.
func (r *PGRepository) UserExists(ctx context.Context, userID uuid.UUID) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("users: user exists: %w", err)
	}
	return exists, nil
}

// GetByUserID fetches the profile for a user.
func (r *PGRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	var p Profile
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, first_name, last_name, email, birth_date, phone, city
		FROM users_data WHERE user_id = $1`, userID).
		Scan(&p.ID, &p.UserID, &p.FirstName, &p.LastName, &p.Email, &p.BirthDate, &p.Phone, &p.City)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, fmt.Errorf("users: get profile: %w", err)
	}
	return &p, nil
}

// Insert persists a new profile row.
func (r *PGRepository) Insert(ctx context.Context, profile *Profile) error {
	profile.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users_data (id, user_id, first_name, last_name, email, birth_date, phone, city)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		profile.ID, profile.UserID, profile.FirstName, profile.LastName,
		profile.Email, profile.BirthDate, profile.Phone, profile.City)
	if err != nil {
		return fmt.Errorf("users: insert profile: %w", err)
	}
	return nil
}

// Update persists the merged profile.
func (r *PGRepository) Update(ctx context.Context, profile *Profile) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users_data
		SET first_name = $2, last_name = $3, email = $4, birth_date = $5, phone = $6, city = $7, updated_at = now()
		WHERE user_id = $1`,
		profile.UserID, profile.FirstName, profile.LastName,
		profile.Email, profile.BirthDate, profile.Phone, profile.City)
	if err != nil {
		return fmt.Errorf("users: update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// DeleteByUserID removes a user's profile. Deleting an absent
// profile is not an error.
func (r *PGRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM users_data WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("users: delete profile: %w", err)
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
