package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/aussiebroadwan/taskbridge/internal/auth/domain"
	"github.com/aussiebroadwan/taskbridge/internal/auth/store"
	"github.com/aussiebroadwan/taskbridge/pkg/cryptox"
	"github.com/aussiebroadwan/taskbridge/pkg/slogx"
)

// ConsentService records per (user, client) scope grants and turns an
// approved authorization request into a code.
type ConsentService struct {
	Store store.Store
	Codes *CodeIssuer
	Now   func() time.Time
}

// ConsentPrompt is what the consent UI needs to ask the user.
type ConsentPrompt struct {
	RequestID  string
	ClientID   string
	ClientName string
	Scopes     []string
	ExpiresAt  time.Time
}

// ConsentOutcome is either a redirect (auto-approved) or a prompt.
type ConsentOutcome struct {
	RedirectURL string
	Prompt      *ConsentPrompt
}

// Evaluate auto-approves when an unrevoked consent already covers every
// requested scope, otherwise it describes the prompt to show.
func (s *ConsentService) Evaluate(ctx context.Context, userID, requestID string) (*ConsentOutcome, error) {
	pending, err := loadPending(ctx, s.Store, requestID, clock(s.Now))
	if err != nil {
		return nil, err
	}

	existing, err := s.Store.Consents().GetConsent(ctx, userID, pending.Client.ID)
	switch {
	case err == nil && existing.Covers(pending.Request.Scopes):
		slogx.FromContext(ctx).Info("consent auto-approved", "client_id", pending.Client.ID)
		redirect, err := s.Decide(ctx, userID, requestID, true)
		if err != nil {
			return nil, err
		}
		return &ConsentOutcome{RedirectURL: redirect}, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	name := pending.Client.Name
	if name == "" {
		name = pending.Client.ID
	}
	return &ConsentOutcome{Prompt: &ConsentPrompt{
		RequestID:  requestID,
		ClientID:   pending.Client.ID,
		ClientName: name,
		Scopes:     pending.Request.Scopes,
		ExpiresAt:  pending.Request.ExpiresAt,
	}}, nil
}

// Decide consumes the authorization request exactly once. Deny redirects
// with access_denied; approve widens the stored consent to the union of
// old and requested scopes and issues a code.
func (s *ConsentService) Decide(ctx context.Context, userID, requestID string, approve bool) (string, error) {
	log := slogx.FromContext(ctx)
	now := clock(s.Now)

	var redirect string
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		req, err := tx.AuthorizationRequests().ConsumeAuthorizationRequest(ctx, cryptox.FingerprintToken(requestID), now)
		if err != nil {
			if errors.Is(err, store.ErrConsumed) {
				return fmt.Errorf("%w: authorization request expired or already used", ErrInvalidRequest)
			}
			return err
		}

		if !approve {
			log.Info("consent denied", "client_id", req.ClientID)
			redirect = buildRedirect(req.RedirectURI, url.Values{
				"error":             {ErrAccessDenied.Error()},
				"error_description": {"the user denied the request"},
				"state":             {req.State},
			})
			return nil
		}

		granted := req.Scopes
		prev, err := tx.Consents().GetConsent(ctx, userID, req.ClientID)
		switch {
		case err == nil && prev.RevokedAt == nil:
			granted = domain.UnionScopes(prev.Scopes, req.Scopes)
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return err
		}

		if err := tx.Consents().UpsertConsent(ctx, domain.Consent{
			UserID:      userID,
			ClientID:    req.ClientID,
			Scopes:      granted,
			ConsentedAt: now,
		}); err != nil {
			return err
		}

		redirect, err = s.Codes.issue(ctx, tx.AuthorizationCodes(), userID, req)
		return err
	})
	if err != nil {
		return "", err
	}
	return redirect, nil
}

// Revoke withdraws a user's consent for a client. The next authorization
// prompts again.
func (s *ConsentService) Revoke(ctx context.Context, userID, clientID string) error {
	err := s.Store.Consents().RevokeConsent(ctx, userID, clientID, clock(s.Now))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}
