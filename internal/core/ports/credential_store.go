package ports

import (
	"context"

	"github.com/sewerwatch/portal/internal/core/domain"
)

// CredentialStore holds one client's token and cached identity across the
// durable and ephemeral scopes.
type CredentialStore interface {
	// Read checks the durable scope first, then the ephemeral one. It returns
	// nil when neither holds a token; storage and decoding problems are
	// logged and read as absent.
	Read(ctx context.Context) *domain.Session
	Write(ctx context.Context, session domain.Session, remember bool) error
	// Clear removes token and user from both scopes.
	Clear(ctx context.Context) error
	// ClearToken is Clear restricted to scopes still holding token. It
	// reports whether anything was removed, so a caller acting on a stale
	// token never wipes a newer login.
	ClearToken(ctx context.Context, token string) (bool, error)
	// UpdateUser rewrites the cached user in the scope that holds the token.
	UpdateUser(ctx context.Context, user domain.Identity) error
	// RotateToken swaps old for token only if old is still stored.
	RotateToken(ctx context.Context, old, token string) (bool, error)
	// Namespace identifies the client without exposing its cookie.
	Namespace() string
}

// CredentialStores hands out the store of a client.
type CredentialStores interface {
	For(clientID string) CredentialStore
}
