package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatekeeper-auth/gatekeeper/internal/platform/db"
	"github.com/gatekeeper-auth/gatekeeper/internal/platform/httpx"
)

const uniqueViolation = "23505"

// Repository defines persistence operations for the permission graph.
type Repository interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id uuid.UUID) (Role, error)
	CreateRole(ctx context.Context, code, description string) (Role, error)
	UpdateRole(ctx context.Context, role Role) (Role, error)
	DeleteRole(ctx context.Context, id uuid.UUID) error
	AssignRoles(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) ([]UserRole, error)
	UserHasAnyRole(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) (bool, error)
	EffectivePermissions(ctx context.Context, userID uuid.UUID) ([]string, error)
	IsSuperuser(ctx context.Context, userID uuid.UUID) (bool, error)
	EnsurePermission(ctx context.Context, code string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// ListRoles returns all roles ordered by code.
func (r *PGRepository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, code, description, created_at, updated_at
		FROM roles ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("rbac: list roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Code, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, fmt.Errorf("rbac: scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// GetRole fetches a role by ID.
func (r *PGRepository) GetRole(ctx context.Context, id uuid.UUID) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `
		SELECT id, code, description, created_at, updated_at
		FROM roles WHERE id = $1`, id).
		Scan(&role.ID, &role.Code, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("%w: role is not found", httpx.ErrNotFound)
		}
		return Role{}, fmt.Errorf("rbac: get role: %w", err)
	}
	return role, nil
}

// CreateRole inserts a new role.
func (r *PGRepository) CreateRole(ctx context.Context, code, description string) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `
		INSERT INTO roles (id, code, description)
		VALUES ($1, $2, $3)
		RETURNING id, code, description, created_at, updated_at`,
		uuid.New(), code, description).
		Scan(&role.ID, &role.Code, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Role{}, fmt.Errorf("%w: role is already existed", httpx.ErrDuplicate)
		}
		return Role{}, fmt.Errorf("rbac: create role: %w", err)
	}
	return role, nil
}

// UpdateRole persists the merged role.
func (r *PGRepository) UpdateRole(ctx context.Context, role Role) (Role, error) {
	var updated Role
	err := r.pool.QueryRow(ctx, `
		UPDATE roles SET code = $2, description = $3, updated_at = now()
		WHERE id = $1
		RETURNING id, code, description, created_at, updated_at`,
		role.ID, role.Code, role.Description).
		Scan(&updated.ID, &updated.Code, &updated.Description, &updated.CreatedAt, &updated.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("%w: role is not found", httpx.ErrNotFound)
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Role{}, fmt.Errorf("%w: role code is already in use", httpx.ErrDuplicate)
		}
		return Role{}, fmt.Errorf("rbac: update role: %w", err)
	}
	return updated, nil
}

// DeleteRole removes a role; link rows cascade at the schema level.
func (r *PGRepository) DeleteRole(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("rbac: delete role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: role is not found", httpx.ErrNotFound)
	}
	return nil
}

// AssignRoles links a user to the given roles in a single
// transaction: either every link lands or none does. Re-assigning an
// already-held role is a no-op rather than a duplicate row.
func (r *PGRepository) AssignRoles(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) ([]UserRole, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
			return fmt.Errorf("rbac: check user: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: user not found", httpx.ErrNotFound)
		}

		var count int
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM roles WHERE id = ANY($1)`, roleIDs).Scan(&count); err != nil {
			return fmt.Errorf("rbac: check roles: %w", err)
		}
		if count != len(roleIDs) {
			return fmt.Errorf("%w: role not found", httpx.ErrNotFound)
		}

		for _, roleID := range roleIDs {
			if _, err := tx.Exec(ctx, `
				INSERT INTO users_roles (id, user_id, role_id)
				VALUES ($1, $2, $3)
				ON CONFLICT (user_id, role_id) DO NOTHING`,
				uuid.New(), userID, roleID); err != nil {
				return fmt.Errorf("rbac: assign role %s: %w", roleID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	links := make([]UserRole, 0, len(roleIDs))
	for _, roleID := range roleIDs {
		links = append(links, UserRole{UserID: userID, RoleID: roleID})
	}
	return links, nil
}

// UserHasAnyRole reports whether a (user, role) link exists for any
// of the given roles.
func (r *PGRepository) UserHasAnyRole(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM users_roles
			WHERE user_id = $1 AND role_id = ANY($2)
		)`, userID, roleIDs).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("rbac: user has any role: %w", err)
	}
	return exists, nil
}

// EffectivePermissions returns the deduplicated permission codes
// reachable through the user's role assignments.
func (r *PGRepository) EffectivePermissions(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT p.code
		FROM permissions p
		JOIN roles_permissions rp ON rp.perm_id = p.id
		JOIN users_roles ur ON ur.role_id = rp.role_id
		WHERE ur.user_id = $1
		ORDER BY p.code`, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: effective permissions: %w", err)
	}
	defer rows.Close()

	perms := []string{}
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("rbac: scan permission: %w", err)
		}
		perms = append(perms, code)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

// IsSuperuser reads the superuser flag off the user row.
func (r *PGRepository) IsSuperuser(ctx context.Context, userID uuid.UUID) (bool, error) {
	var isSuper bool
	err := r.pool.QueryRow(ctx, `SELECT is_superuser FROM users WHERE id = $1`, userID).Scan(&isSuper)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("%w: user not found", httpx.ErrNotFound)
		}
		return false, fmt.Errorf("rbac: is superuser: %w", err)
	}
	return isSuper, nil
}

// EnsurePermission inserts a vocabulary entry if missing.
func (r *PGRepository) EnsurePermission(ctx context.Context, code string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO permissions (id, code)
		VALUES ($1, $2)
		ON CONFLICT (code) DO NOTHING`, uuid.New(), code)
	if err != nil {
		return fmt.Errorf("rbac: ensure permission %s: %w", code, err)
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
