package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/gatekeeper-auth/gatekeeper/internal/platform/httpx"
)

// Service handles personal-data business logic.
type Service struct {
	repo Repository
}

// NewService builds a Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns the user's profile, or the zero profile when none has
// been written yet.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	profile, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return &Profile{UserID: userID}, nil
		}
		return nil, err
	}
	return profile, nil
}

// Add creates the profile from the given patch.
func (s *Service) Add(ctx context.Context, userID uuid.UUID, patch ProfilePatch) (*Profile, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	profile := &Profile{UserID: userID}
	patch.Apply(profile)
	if err := s.repo.Insert(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// Change merges the patch into the stored profile, creating it lazily
// when absent.
func (s *Service) Change(ctx context.Context, userID uuid.UUID, patch ProfilePatch) (*Profile, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	profile, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, httpx.ErrNotFound) {
			return nil, err
		}
		profile = &Profile{UserID: userID}
		patch.Apply(profile)
		if err := s.repo.Insert(ctx, profile); err != nil {
			return nil, err
		}
		return profile, nil
	}
	patch.Apply(profile)
	if err := s.repo.Update(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// Delete removes the user's profile.
func (s *Service) Delete(ctx context.Context, userID uuid.UUID) error {
	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}
	return s.repo.DeleteByUserID(ctx, userID)
}

func (s *Service) requireUser(ctx context.Context, userID uuid.UUID) error {
	exists, err := s.repo.UserExists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: user not found", httpx.ErrNotFound)
	}
	return nil
}
