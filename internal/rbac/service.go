package rbac

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/gatekeeper-auth/gatekeeper/internal/platform/httpx"
	"github.com/gatekeeper-auth/gatekeeper/internal/shared"
	"github.com/gatekeeper-auth/gatekeeper/internal/tokens"
)

// Service orchestrates permission graph operations.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id uuid.UUID) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// CreateRole inserts a new role after validating both fields.
func (s *Service) CreateRole(ctx context.Context, code, description string) (Role, error) {
	code = strings.TrimSpace(code)
	description = strings.TrimSpace(description)
	if code == "" || description == "" {
		return Role{}, fmt.Errorf("%w: role code/role description is empty", httpx.ErrValidation)
	}
	return s.repo.CreateRole(ctx, code, description)
}

// UpdateRole applies an explicit field-by-field merge of the patch
// onto the stored role.
func (s *Service) UpdateRole(ctx context.Context, id uuid.UUID, patch RolePatch) (Role, error) {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if patch.Code != nil {
		code := strings.TrimSpace(*patch.Code)
		if code == "" {
			return Role{}, fmt.Errorf("%w: role code is empty", httpx.ErrValidation)
		}
		role.Code = code
	}
	if patch.Description != nil {
		role.Description = strings.TrimSpace(*patch.Description)
	}
	return s.repo.UpdateRole(ctx, role)
}

// DeleteRole removes a role; user-role and role-permission links
// cascade with it.
func (s *Service) DeleteRole(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteRole(ctx, id)
}

// AssignRoles links a user to each given role atomically.
func (s *Service) AssignRoles(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) ([]UserRole, error) {
	if len(roleIDs) == 0 {
		return nil, fmt.Errorf("%w: role_ids is empty", httpx.ErrValidation)
	}
	return s.repo.AssignRoles(ctx, userID, roleIDs)
}

// PermissionsForUser computes the effective permission set. A user
// with no roles yields an empty set, not an error.
func (s *Service) PermissionsForUser(ctx context.Context, userID uuid.UUID) ([]string, error) {
	return s.repo.EffectivePermissions(ctx, userID)
}

// HasAnyPermission reports whether the effective set intersects the
// required set, or the user is a superuser.
func (s *Service) HasAnyPermission(ctx context.Context, userID uuid.UUID, required []string) (bool, error) {
	isSuper, err := s.repo.IsSuperuser(ctx, userID)
	if err != nil {
		return false, err
	}
	if isSuper {
		return true, nil
	}
	granted, err := s.repo.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	set := make(map[string]struct{}, len(granted))
	for _, p := range granted {
		set[p] = struct{}{}
	}
	for _, p := range required {
		if _, ok := set[p]; ok {
			return true, nil
		}
	}
	return false, nil
}

// HasAnyRole reports whether the user holds at least one of the
// given roles.
func (s *Service) HasAnyRole(ctx context.Context, userID uuid.UUID, roleIDs []uuid.UUID) (bool, error) {
	if len(roleIDs) == 0 {
		return false, nil
	}
	return s.repo.UserHasAnyRole(ctx, userID, roleIDs)
}

// ClaimsSnapshot resolves the authorization snapshot embedded into
// tokens at issue time. Implements tokens.SnapshotSource.
func (s *Service) ClaimsSnapshot(ctx context.Context, userID uuid.UUID) (tokens.Snapshot, error) {
	isSuper, err := s.repo.IsSuperuser(ctx, userID)
	if err != nil {
		return tokens.Snapshot{}, err
	}
	perms, err := s.repo.EffectivePermissions(ctx, userID)
	if err != nil {
		return tokens.Snapshot{}, err
	}
	return tokens.Snapshot{Permissions: perms, IsSuperuser: isSuper}, nil
}

// Seed makes sure the fixed permission vocabulary exists. Runs once
// at startup before any role-permission assignment is meaningful.
func (s *Service) Seed(ctx context.Context) error {
	for _, code := range shared.CoreVocabulary() {
		if err := s.repo.EnsurePermission(ctx, code); err != nil {
			return err
		}
	}
	return nil
}

var _ tokens.SnapshotSource = (*Service)(nil)
