// Package user resolves external identities to local accounts.
package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/godlife/internal/domain"
)

const (
	defaultName     = "Kakao User"
	defaultTimezone = "Asia/Seoul"
)

// ResolveInput captures an identity resolution request.
type ResolveInput struct {
	ExternalID string
	Name       string
	Timezone   string
}

// Service performs get-or-create resolution keyed by external id.
type Service struct {
	store domain.Store
}

// NewService constructs a Service.
func NewService(store domain.Store) *Service {
	return &Service{store: store}
}

// Resolve returns the account for the external id, creating an ACTIVE one on
// first sight. The bool reports whether a new account was created. An existing
// account is returned as-is; resolve never overwrites profile fields.
func (s *Service) Resolve(ctx context.Context, in ResolveInput) (*domain.User, bool, error) {
	externalID := strings.TrimSpace(in.ExternalID)
	if externalID == "" {
		return nil, false, fmt.Errorf("%w: external_id is required", domain.ErrValidation)
	}

	var (
		resolved *domain.User
		created  bool
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, r domain.Repositories) error {
		existing, err := r.Users.GetByExternalID(ctx, externalID)
		if err != nil {
			return err
		}
		if existing != nil {
			resolved = existing
			return nil
		}

		name := strings.TrimSpace(in.Name)
		if name == "" {
			name = defaultName
		}
		timezone := strings.TrimSpace(in.Timezone)
		if timezone == "" {
			timezone = defaultTimezone
		} else if _, err := time.LoadLocation(timezone); err != nil {
			timezone = defaultTimezone
		}

		now := time.Now().UTC()
		candidate := &domain.User{
			ID:         uuid.New(),
			ExternalID: externalID,
			Name:       name,
			Timezone:   timezone,
			Status:     domain.UserStatusActive,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := r.Users.Save(ctx, candidate); err != nil {
			return err
		}
		resolved = candidate
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return resolved, created, nil
}
