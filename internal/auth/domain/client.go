package domain

import (
	"slices"
	"time"
)

type ClientType string

const (
	ClientPublic       ClientType = "public"
	ClientConfidential ClientType = "confidential"
)

// Client is a registered OAuth client. Clients are never hard-deleted and
// their redirect URI set only grows.
type Client struct {
	ID             string
	Name           string
	Type           ClientType
	SecretHash     string // empty for public clients
	AllowedScopes  []string
	RedirectURIs   []string
	AutoRegistered bool // created on first use from a trusted redirect domain
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (c Client) IsConfidential() bool { return c.Type == ClientConfidential }

// HasRedirectURI compares by exact string match.
func (c Client) HasRedirectURI(uri string) bool {
	return slices.Contains(c.RedirectURIs, uri)
}
