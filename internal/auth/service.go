package auth

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/identity"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/shared"
)

// Repository loads login credentials. identity.Repository satisfies it.
type Repository interface {
	FindCredentials(ctx context.Context, email string) (identity.Credentials, error)
}

// dummyHash is compared against when the email is unknown so both paths cost one bcrypt check.
var dummyHash = []byte("$2a$10$7EqJtq98hPqEX7fNZaFWoO5zvK6HMXhJ6bKjZs4Pn1yYK5n1o1bGe")

// Service wraps authentication business rules.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (identity.Actor, error) {
	creds, err := s.repo.FindCredentials(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, identity.ErrActorNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return identity.Actor{}, shared.ErrInvalidCredentials
		}
		return identity.Actor{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(password)); err != nil {
		return identity.Actor{}, shared.ErrInvalidCredentials
	}
	if !creds.Actor.IsActive {
		return identity.Actor{}, shared.ErrInvalidCredentials
	}
	return creds.Actor, nil
}
