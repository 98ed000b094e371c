package ports

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/sewerwatch/portal/internal/core/domain"
)

// Upstream is the incident-tracking REST backend.
type Upstream interface {
	Login(ctx context.Context, email, password string) (*domain.Session, error)
	// ForClient binds calls to a client's credentials. onExpired runs once
	// the refresh flow has failed and the store was cleared.
	ForClient(store CredentialStore, onExpired func()) UpstreamSession
}

// UpstreamSession is the bearer-authenticated view of the backend.
type UpstreamSession interface {
	Profile(ctx context.Context) (*domain.Identity, error)
	UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (*domain.Identity, error)
	UnreadCounts(ctx context.Context) (domain.UnreadCounts, error)
	Forward(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) (*http.Response, error)
}
