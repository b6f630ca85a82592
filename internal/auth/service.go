package auth

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tekni-portal/tekni-portal/internal/authz"
	"github.com/tekni-portal/tekni-portal/internal/shared"
)

// Service wraps authentication business rules and doubles as the identity
// session provider consumed by the route guard.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// ChangePassword verifies the current password and installs a new one,
// clearing the forced-change flag.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return shared.ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.UpdatePassword(ctx, userID, string(hash))
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID string, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}

// PruneSessions removes expired session audit rows.
func (s *Service) PruneSessions(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpiredSessions(ctx)
}

// Current resolves the identity bound to the request session. A session
// without a user yields nil (signed out). A signed-in user whose profile
// record is gone yields an identity with zero roles so that authorization
// degrades to denial rather than an error.
func (s *Service) Current(ctx context.Context) (*authz.Identity, error) {
	sess := shared.SessionFromContext(ctx)
	if sess == nil || sess.User() == "" {
		return nil, nil
	}
	id := sess.User()
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return &authz.Identity{ID: id, Profile: authz.Profile{ID: id}}, nil
		}
		return nil, err
	}
	return &authz.Identity{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Profile: authz.Profile{
			ID:                  user.ID,
			Roles:               user.Roles,
			NeedsPasswordChange: user.NeedsPasswordChange,
		},
	}, nil
}

var _ authz.IdentityProvider = (*Service)(nil)
