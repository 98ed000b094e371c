package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/sewerwatch/portal/internal/api/middleware"
	"github.com/sewerwatch/portal/internal/core/domain"
	"github.com/sewerwatch/portal/internal/core/ports"
	"github.com/sewerwatch/portal/internal/core/service"
	"github.com/sewerwatch/portal/internal/infrastructure/session"
)

type stubAuthService struct {
	loginFn   func(ctx context.Context, clientID, email, password string, remember bool) (*domain.Identity, error)
	logoutFn  func(ctx context.Context, clientID string) error
	profileFn func(ctx context.Context, clientID string) (*domain.Identity, error)
	updateFn  func(ctx context.Context, clientID string, u domain.ProfileUpdate) (*domain.Identity, error)
}

func (s *stubAuthService) Login(ctx context.Context, clientID, email, password string, remember bool) (*domain.Identity, error) {
	return s.loginFn(ctx, clientID, email, password, remember)
}

func (s *stubAuthService) Logout(ctx context.Context, clientID string) error {
	return s.logoutFn(ctx, clientID)
}

func (s *stubAuthService) Profile(ctx context.Context, clientID string) (*domain.Identity, error) {
	return s.profileFn(ctx, clientID)
}

func (s *stubAuthService) UpdateProfile(ctx context.Context, clientID string, u domain.ProfileUpdate) (*domain.Identity, error) {
	return s.updateFn(ctx, clientID, u)
}

type issuedCookie struct {
	clientID string
	persist  bool
}

type stubCookies struct {
	issued []issuedCookie
}

func (s *stubCookies) Issue(_ echo.Context, clientID string, persist bool) {
	s.issued = append(s.issued, issuedCookie{clientID: clientID, persist: persist})
}

// stubUpstream serves a fixed profile and unread counts for every client.
type stubUpstream struct {
	profileFn func(ctx context.Context) (*domain.Identity, error)
	countsFn  func(ctx context.Context) (domain.UnreadCounts, error)
	forwardFn func(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) (*http.Response, error)
}

func (u *stubUpstream) Login(context.Context, string, string) (*domain.Session, error) {
	return nil, errors.New("not used")
}

func (u *stubUpstream) ForClient(ports.CredentialStore, func()) ports.UpstreamSession {
	return &stubSession{up: u}
}

type stubSession struct{ up *stubUpstream }

func (s *stubSession) Profile(ctx context.Context) (*domain.Identity, error) {
	return s.up.profileFn(ctx)
}

func (s *stubSession) UpdateProfile(context.Context, domain.ProfileUpdate) (*domain.Identity, error) {
	return nil, errors.New("not used")
}

func (s *stubSession) UnreadCounts(ctx context.Context) (domain.UnreadCounts, error) {
	return s.up.countsFn(ctx)
}

func (s *stubSession) Forward(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) (*http.Response, error) {
	return s.up.forwardFn(ctx, method, path, query, body, contentType)
}

// signedInRegistry returns a registry whose client "client-1" holds a
// verified worker session.
func signedInRegistry(t *testing.T, up *stubUpstream) *service.Registry {
	t.Helper()
	stores := session.NewStores(session.NewMemoryScope(0), session.NewMemoryScope(0), zerolog.Nop())
	worker := domain.Identity{ID: "4", Name: "Wes", Role: domain.RoleWorker}
	if err := stores.For("client-1").Write(context.Background(), domain.Session{Token: "tok", User: &worker}, false); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if up.profileFn == nil {
		up.profileFn = func(context.Context) (*domain.Identity, error) { return &worker, nil }
	}
	reg, err := service.NewRegistry(8, stores, up, service.NewVerifier(time.Second, true, zerolog.Nop()), nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return reg
}

func newContext(e *echo.Echo, req *http.Request) (echo.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(middleware.ContextClientID, "client-1")
	return c, rec
}
