package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aussiebroadwan/taskbridge/internal/auth/domain"
	"github.com/aussiebroadwan/taskbridge/internal/auth/store"
	"github.com/aussiebroadwan/taskbridge/pkg/cryptox"
	"github.com/aussiebroadwan/taskbridge/pkg/idx"
	"github.com/aussiebroadwan/taskbridge/pkg/slogx"
)

var ErrClientNotFound = errors.New("client not found")

type ClientService struct {
	Store     store.Store
	Passwords *cryptox.PasswordHasher
}

// NewClient describes a client to register. An empty ID is generated.
type NewClient struct {
	ID           string
	Name         string
	Confidential bool

	// Secret is used for confidential clients; one is generated when empty.
	Secret       string
	Scopes       []string
	RedirectURIs []string
}

// CreateClient registers a client and returns its id together with the
// plaintext secret, which is never readable again.
func (s *ClientService) CreateClient(ctx context.Context, nc NewClient) (clientID string, plaintextSecret string, err error) {
	l := slogx.FromContext(ctx)

	for _, sc := range nc.Scopes {
		if !domain.IsRecognizedScope(sc) {
			return "", "", fmt.Errorf("%w: unknown scope %q", ErrInvalidScope, sc)
		}
	}
	for _, uri := range nc.RedirectURIs {
		if !validRedirectURI(uri) {
			return "", "", fmt.Errorf("%w: invalid redirect uri %q", ErrInvalidRequest, uri)
		}
	}

	clientType := domain.ClientPublic
	var secretHash string
	if nc.Confidential {
		clientType = domain.ClientConfidential
		plaintextSecret = nc.Secret
		if plaintextSecret == "" {
			plaintextSecret, err = cryptox.GenerateToken(cryptox.TokenSize256)
			if err != nil {
				l.Error("failed to generate client secret", "error", err)
				return "", "", err
			}
		}

		secretHash, err = s.Passwords.Hash(plaintextSecret)
		if err != nil {
			l.Error("failed to hash client secret", "error", err)
			return "", "", err
		}
	}

	clientID = strings.TrimSpace(nc.ID)
	if clientID == "" {
		clientID = idx.New(idx.PrefixClient).String()
	}

	err = s.Store.Clients().CreateClient(ctx, domain.Client{
		ID:            clientID,
		Name:          nc.Name,
		Type:          clientType,
		SecretHash:    secretHash,
		AllowedScopes: domain.DedupeScopes(nc.Scopes),
		RedirectURIs:  nc.RedirectURIs,
	})
	if err != nil {
		l.Error("failed to create client", "error", err)
		return "", "", err
	}

	l.Info("client created successfully", "client_id", clientID, "name", nc.Name, "has_secret", nc.Confidential)
	return clientID, plaintextSecret, nil
}

// GetClient fetches a client by id.
func (s *ClientService) GetClient(ctx context.Context, clientID string) (domain.Client, error) {
	c, err := s.Store.Clients().GetClientByID(ctx, clientID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Client{}, ErrClientNotFound
	}
	return c, err
}

// ListClients returns all OAuth2 clients.
func (s *ClientService) ListClients(ctx context.Context) ([]domain.Client, error) {
	return s.Store.Clients().ListClients(ctx)
}
