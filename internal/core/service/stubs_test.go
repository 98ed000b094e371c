package service

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/sewerwatch/portal/internal/core/domain"
	"github.com/sewerwatch/portal/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Credential store stub: two in-memory scopes shared across "restarts".
// ---------------------------------------------------------------------------

type scopeData struct {
	token string
	user  *domain.Identity
}

type stubBackend struct {
	mu        sync.Mutex
	durable   map[string]*scopeData
	ephemeral map[string]*scopeData
}

func newStubBackend() *stubBackend {
	return &stubBackend{durable: map[string]*scopeData{}, ephemeral: map[string]*scopeData{}}
}

func (b *stubBackend) For(clientID string) ports.CredentialStore {
	return &stubStore{backend: b, ns: "ns-" + clientID}
}

type stubStore struct {
	backend *stubBackend
	ns      string
}

func (s *stubStore) Namespace() string { return s.ns }

func (s *stubStore) Read(_ context.Context) *domain.Session {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	if d, ok := s.backend.durable[s.ns]; ok {
		return &domain.Session{Token: d.token, User: d.user.Clone(), Scope: domain.ScopeDurable}
	}
	if d, ok := s.backend.ephemeral[s.ns]; ok {
		return &domain.Session{Token: d.token, User: d.user.Clone(), Scope: domain.ScopeEphemeral}
	}
	return nil
}

func (s *stubStore) Write(_ context.Context, session domain.Session, remember bool) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	target := s.backend.ephemeral
	if remember {
		target = s.backend.durable
	}
	target[s.ns] = &scopeData{token: session.Token, user: session.User.Clone()}
	return nil
}

func (s *stubStore) Clear(_ context.Context) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	delete(s.backend.durable, s.ns)
	delete(s.backend.ephemeral, s.ns)
	return nil
}

func (s *stubStore) ClearToken(_ context.Context, token string) (bool, error) {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	cleared := false
	for _, m := range []map[string]*scopeData{s.backend.durable, s.backend.ephemeral} {
		if d, ok := m[s.ns]; ok && d.token == token {
			delete(m, s.ns)
			cleared = true
		}
	}
	return cleared, nil
}

func (s *stubStore) UpdateUser(_ context.Context, user domain.Identity) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	for _, m := range []map[string]*scopeData{s.backend.durable, s.backend.ephemeral} {
		if d, ok := m[s.ns]; ok {
			d.user = user.Clone()
			return nil
		}
	}
	return domain.ErrNoSession
}

func (s *stubStore) RotateToken(_ context.Context, old, token string) (bool, error) {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	for _, m := range []map[string]*scopeData{s.backend.durable, s.backend.ephemeral} {
		if d, ok := m[s.ns]; ok && d.token == old {
			d.token = token
			return true, nil
		}
	}
	return false, nil
}

// ---------------------------------------------------------------------------
// Upstream stubs
// ---------------------------------------------------------------------------

type stubUpstream struct {
	loginFn   func(ctx context.Context, email, password string) (*domain.Session, error)
	profileFn func(ctx context.Context) (*domain.Identity, error)
	updateFn  func(ctx context.Context, u domain.ProfileUpdate) (*domain.Identity, error)
	countsFn  func(ctx context.Context) (domain.UnreadCounts, error)

	mu        sync.Mutex
	onExpired []func()
}

func (u *stubUpstream) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	return u.loginFn(ctx, email, password)
}

func (u *stubUpstream) ForClient(_ ports.CredentialStore, onExpired func()) ports.UpstreamSession {
	u.mu.Lock()
	u.onExpired = append(u.onExpired, onExpired)
	u.mu.Unlock()
	return &stubSession{up: u}
}

type stubSession struct {
	up *stubUpstream
}

func (s *stubSession) Profile(ctx context.Context) (*domain.Identity, error) {
	return s.up.profileFn(ctx)
}

func (s *stubSession) UpdateProfile(ctx context.Context, u domain.ProfileUpdate) (*domain.Identity, error) {
	return s.up.updateFn(ctx, u)
}

func (s *stubSession) UnreadCounts(ctx context.Context) (domain.UnreadCounts, error) {
	return s.up.countsFn(ctx)
}

func (s *stubSession) Forward(context.Context, string, string, url.Values, io.Reader, string) (*http.Response, error) {
	return nil, domain.ErrUpstreamUnavailable
}

// ---------------------------------------------------------------------------
// Audit sink stub
// ---------------------------------------------------------------------------

type recordingSink struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (r *recordingSink) Record(e domain.AuditEvent) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recordingSink) kinds() []domain.AuditKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.AuditKind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

func blockUntilDone(ctx context.Context) (*domain.Identity, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
