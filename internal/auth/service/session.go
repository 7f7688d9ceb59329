package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/aussiebroadwan/taskbridge/internal/auth/domain"
	"github.com/aussiebroadwan/taskbridge/internal/auth/store"
	"github.com/aussiebroadwan/taskbridge/pkg/cryptox"
	"github.com/aussiebroadwan/taskbridge/pkg/slogx"
)

// LoginService authenticates users on the login form and keeps the
// server-side sessions behind the browser cookie.
type LoginService struct {
	Store      store.Store
	Passwords  *cryptox.PasswordHasher
	SessionTTL time.Duration
	Now        func() time.Time
}

// Login checks email and password and, when the user has TOTP enrolled,
// the one-time code. It returns the opaque session id for the cookie.
func (s *LoginService) Login(ctx context.Context, email, password, otpCode string) (string, domain.User, error) {
	l := slogx.FromContext(ctx)
	now := clock(s.Now)

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", domain.User{}, fmt.Errorf("%w: email and password are required", ErrInvalidRequest)
	}

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Info("login failed: unknown email")
			return "", domain.User{}, ErrInvalidCredentials
		}
		return "", domain.User{}, err
	}
	if err := s.Passwords.Verify(password, user.PasswordHash); err != nil {
		l.Info("login failed: bad password", slog.String("user_id", user.ID))
		return "", domain.User{}, ErrInvalidCredentials
	}

	amr := []string{domain.AMRPassword}
	if user.MFAEnabled() {
		otpCode = strings.TrimSpace(otpCode)
		if otpCode == "" {
			return "", domain.User{}, ErrMFARequired
		}
		if !totp.Validate(otpCode, *user.MFASecret) {
			l.Info("login failed: bad otp", slog.String("user_id", user.ID))
			return "", domain.User{}, ErrInvalidCredentials
		}
		amr = append(amr, domain.AMROTP)
	}

	raw, hash, err := cryptox.GenerateOpaque(cryptox.TokenSize256)
	if err != nil {
		return "", domain.User{}, err
	}
	ttl := s.SessionTTL
	if ttl <= 0 {
		ttl = domain.LoginSessionTTL
	}
	if err := s.Store.LoginSessions().CreateLoginSession(ctx, domain.LoginSession{
		IDHash:    hash,
		UserID:    user.ID,
		AMR:       amr,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}); err != nil {
		return "", domain.User{}, err
	}

	l.Info("user logged in", slog.String("user_id", user.ID), slog.Any("amr", amr))
	return raw, user, nil
}

// Session resolves a session cookie to its user. Unknown, revoked and
// expired sessions are ErrLoginRequired.
func (s *LoginService) Session(ctx context.Context, sessionID string) (domain.User, error) {
	if sessionID == "" {
		return domain.User{}, ErrLoginRequired
	}

	sess, err := s.Store.LoginSessions().GetLoginSession(ctx, cryptox.FingerprintToken(sessionID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrLoginRequired
		}
		return domain.User{}, err
	}
	if !sess.Active(clock(s.Now)) {
		return domain.User{}, ErrLoginRequired
	}

	user, err := s.Store.Users().GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrLoginRequired
		}
		return domain.User{}, err
	}
	return user, nil
}

// EndSession revokes the session. Unknown ids are ignored.
func (s *LoginService) EndSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	err := s.Store.LoginSessions().RevokeLoginSession(ctx, cryptox.FingerprintToken(sessionID), clock(s.Now))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}
