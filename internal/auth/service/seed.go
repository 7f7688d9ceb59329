package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/aussiebroadwan/taskbridge/internal/auth/store"
	"github.com/aussiebroadwan/taskbridge/pkg/slogx"
)

// SeedData pre-provisions users and clients at startup.
type SeedData struct {
	Users   []SeedUser   `json:"users"`
	Clients []SeedClient `json:"clients"`
}

type SeedUser struct {
	Email         string `json:"email"`
	Name          string `json:"name"`
	Picture       string `json:"picture,omitempty"`
	EmailVerified bool   `json:"email_verified"`
	Password      string `json:"password"`
	TOTPSecret    string `json:"totp_secret,omitempty"`
}

type SeedClient struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Secret       string   `json:"secret,omitempty"` // empty for public clients
	Scopes       []string `json:"scopes,omitempty"`
	RedirectURIs []string `json:"redirect_uris"`
}

// LoadSeedFile reads a JSON seed file.
func LoadSeedFile(path string) (SeedData, error) {
	b, err := os.ReadFile(path) // #nosec G304 - operator supplied path
	if err != nil {
		return SeedData{}, fmt.Errorf("read seed file: %w", err)
	}
	var data SeedData
	if err := json.Unmarshal(b, &data); err != nil {
		return SeedData{}, fmt.Errorf("parse seed file: %w", err)
	}
	return data, nil
}

// Seeder applies SeedData. Existing users (by email) and clients (by id)
// are left alone apart from new redirect URIs, so seeding is idempotent.
type Seeder struct {
	Users   *UserService
	Clients *ClientService
}

func (s *Seeder) Apply(ctx context.Context, data SeedData) error {
	l := slogx.FromContext(ctx)

	for _, su := range data.Users {
		_, err := s.Users.CreateUser(ctx, NewUser(su))
		switch {
		case errors.Is(err, store.ErrAlreadyExists):
			l.Debug("seed user already exists", "email", su.Email)
		case err != nil:
			return fmt.Errorf("seed user %q: %w", su.Email, err)
		default:
			l.Info("seeded user", "email", su.Email)
		}
	}

	for _, sc := range data.Clients {
		if sc.ID == "" {
			return fmt.Errorf("%w: seed client needs an id", ErrInvalidRequest)
		}

		existing, err := s.Clients.GetClient(ctx, sc.ID)
		if err == nil {
			for _, uri := range sc.RedirectURIs {
				if existing.HasRedirectURI(uri) {
					continue
				}
				if err := s.Clients.Store.Clients().AddRedirectURI(ctx, sc.ID, uri, clock(s.Users.Now)); err != nil {
					return fmt.Errorf("seed client %q: %w", sc.ID, err)
				}
			}
			continue
		}
		if !errors.Is(err, ErrClientNotFound) {
			return err
		}

		if _, _, err := s.Clients.CreateClient(ctx, NewClient{
			ID:           sc.ID,
			Name:         sc.Name,
			Confidential: sc.Secret != "",
			Secret:       sc.Secret,
			Scopes:       sc.Scopes,
			RedirectURIs: sc.RedirectURIs,
		}); err != nil {
			return fmt.Errorf("seed client %q: %w", sc.ID, err)
		}
		l.Info("seeded client", "client_id", sc.ID)
	}

	return nil
}
