package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/aussiebroadwan/taskbridge/internal/auth/store"
)

var (
	ErrInvalidTOTPCode   = errors.New("invalid TOTP code")
	ErrMFANotEnabled     = errors.New("MFA not enabled for this user")
	ErrMFAAlreadyEnabled = errors.New("MFA already enabled for this user")
)

type MFAService struct {
	Store  store.Store
	Issuer string // shown in authenticator apps, e.g. "TaskBridge"
}

// TOTPEnrollment is a generated secret awaiting confirmation. Nothing is
// stored until ConfirmTOTP sees a valid code for it.
type TOTPEnrollment struct {
	Secret string
	URL    string // otpauth:// URI for QR codes
}

// EnrollTOTP generates a TOTP secret for the user.
func (s *MFAService) EnrollTOTP(ctx context.Context, userID string) (TOTPEnrollment, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return TOTPEnrollment{}, err
	}
	if user.MFAEnabled() {
		return TOTPEnrollment{}, ErrMFAAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: user.Email,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return TOTPEnrollment{}, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	return TOTPEnrollment{Secret: key.Secret(), URL: key.URL()}, nil
}

// ConfirmTOTP enables MFA once the user proves their authenticator
// produces codes for secret.
func (s *MFAService) ConfirmTOTP(ctx context.Context, userID, secret, code string) error {
	if secret == "" || !totp.Validate(code, secret) {
		return ErrInvalidTOTPCode
	}

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		user, err := tx.Users().GetUserByID(ctx, userID)
		if err != nil {
			return err
		}
		if user.MFAEnabled() {
			return ErrMFAAlreadyEnabled
		}
		return tx.Users().UpdateMFASecret(ctx, userID, &secret)
	})
}

// RemoveTOTP disables MFA after verifying a current code.
func (s *MFAService) RemoveTOTP(ctx context.Context, userID, code string) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		user, err := tx.Users().GetUserByID(ctx, userID)
		if err != nil {
			return err
		}
		if !user.MFAEnabled() {
			return ErrMFANotEnabled
		}
		if !totp.Validate(code, *user.MFASecret) {
			return ErrInvalidTOTPCode
		}
		return tx.Users().UpdateMFASecret(ctx, userID, nil)
	})
}
