package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"

	"github.com/gatekeeper-auth/gatekeeper/internal/platform/httpx"
)

var fold = cases.Fold()

// Service wraps credential store business rules.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register creates an account with a bcrypt hash of the password.
// Usernames are case-folded so `Alice` and `alice` cannot coexist.
func (s *Service) Register(ctx context.Context, username, password string) (*User, error) {
	username = normalizeUsername(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username/password is empty", httpx.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	return s.repo.CreateUser(ctx, username, string(hash))
}

// Authenticate validates username/password credentials. Unknown user
// and wrong password both surface ErrInvalidCredentials so the two
// cases are indistinguishable to callers; the wrapped cause keeps
// them apart in logs.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	username = normalizeUsername(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username/password is empty", httpx.ErrValidation)
	}
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown username", httpx.ErrInvalidCredentials)
		}
		return nil, err
	}
	if user.TerminateDate != nil {
		return nil, fmt.Errorf("%w: account terminated", httpx.ErrInvalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("%w: password mismatch", httpx.ErrInvalidCredentials)
	}
	return user, nil
}

// ChangePassword verifies the old password and replaces the hash.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("%w: new password is empty", httpx.ErrValidation)
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return fmt.Errorf("%w: password mismatch", httpx.ErrInvalidCredentials)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}
	return s.repo.UpdatePassword(ctx, userID, string(hash))
}

// RecordLogin persists the device metadata of a successful login.
func (s *Service) RecordLogin(ctx context.Context, userID uuid.UUID, ip, userAgent string) error {
	return s.repo.RecordLogin(ctx, userID, ip, userAgent)
}

// LoginHistory pages through a user's login events, newest first.
func (s *Service) LoginHistory(ctx context.Context, userID uuid.UUID, page, size int) ([]LoginEvent, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	if _, err := s.repo.FindByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.ListLoginEvents(ctx, userID, size, (page-1)*size)
}

func normalizeUsername(username string) string {
	return fold.String(strings.TrimSpace(username))
}
