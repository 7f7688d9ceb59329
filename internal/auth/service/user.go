package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/taskbridge/internal/auth/domain"
	"github.com/aussiebroadwan/taskbridge/internal/auth/store"
	"github.com/aussiebroadwan/taskbridge/pkg/cryptox"
	"github.com/aussiebroadwan/taskbridge/pkg/idx"
)

type UserService struct {
	Store     store.Store
	Passwords *cryptox.PasswordHasher
	Now       func() time.Time
}

// NewUser describes a user to create.
type NewUser struct {
	Email         string
	Name          string
	Picture       string
	EmailVerified bool
	Password      string
	TOTPSecret    string
}

// GetUserByID fetches a user by id.
func (s *UserService) GetUserByID(ctx context.Context, userID string) (domain.User, error) {
	return s.Store.Users().GetUserByID(ctx, userID)
}

// CreateUser hashes the password and stores the user. A taken email is
// store.ErrAlreadyExists.
func (s *UserService) CreateUser(ctx context.Context, nu NewUser) (domain.User, error) {
	email := strings.TrimSpace(nu.Email)
	if email == "" || nu.Password == "" {
		return domain.User{}, fmt.Errorf("%w: email and password are required", ErrInvalidRequest)
	}

	hash, err := s.Passwords.Hash(nu.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	now := clock(s.Now)
	u := domain.User{
		ID:            idx.NewAt(idx.PrefixUser, now).String(),
		Email:         email,
		Name:          nu.Name,
		Picture:       nu.Picture,
		EmailVerified: nu.EmailVerified,
		PasswordHash:  hash,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if nu.TOTPSecret != "" {
		secret := nu.TOTPSecret
		u.MFASecret = &secret
	}

	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		return domain.User{}, err
	}
	return u, nil
}
