package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sewerwatch/portal/internal/core/domain"
	"github.com/sewerwatch/portal/internal/core/ports"
)

// AuthService implements login, logout and the profile screen on top of the
// shell registry and the backend.
type AuthService struct {
	shells   *Registry
	upstream ports.Upstream
	audit    ports.AuditSink
	log      zerolog.Logger
}

func NewAuthService(shells *Registry, upstream ports.Upstream, audit ports.AuditSink, log zerolog.Logger) *AuthService {
	return &AuthService{shells: shells, upstream: upstream, audit: audit, log: log}
}

// Login authenticates against the backend and stores the session in the
// scope picked by remember. The other scope is emptied first so only one
// scope is ever authoritative.
func (s *AuthService) Login(ctx context.Context, clientID, email, password string, remember bool) (*domain.Identity, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	store := s.shells.Store(clientID)
	session, err := s.upstream.Login(ctx, email, password)
	if err != nil {
		s.record(domain.AuditEvent{Kind: domain.AuditLoginFailed, Client: store.Namespace(), Detail: email})
		return nil, err
	}
	if session.User == nil || session.Token == "" {
		return nil, fmt.Errorf("login: %w: incomplete response", domain.ErrUpstreamUnavailable)
	}

	if err := store.Clear(ctx); err != nil {
		return nil, fmt.Errorf("login: reset session: %w", err)
	}
	if err := store.Write(ctx, *session, remember); err != nil {
		return nil, fmt.Errorf("login: store session: %w", err)
	}
	s.shells.SignIn(clientID, *session.User)

	s.log.Info().
		Str("client", store.Namespace()).
		Str("role", string(session.User.Role)).
		Str("scope", string(domain.ScopeFor(remember))).
		Msg("user signed in")
	s.record(domain.AuditEvent{
		Kind:   domain.AuditLogin,
		Client: store.Namespace(),
		UserID: session.User.ID,
		Role:   session.User.Role,
		Detail: string(domain.ScopeFor(remember)),
	})
	return session.User.Clone(), nil
}

// Logout clears both scopes and signs the client out.
func (s *AuthService) Logout(ctx context.Context, clientID string) error {
	store := s.shells.Store(clientID)
	who := s.shells.Current(clientID)

	s.shells.SignOut(clientID)
	if err := store.Clear(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.record(domain.AuditEvent{
		Kind:   domain.AuditLogout,
		Client: store.Namespace(),
		UserID: idOf(who),
		Role:   domain.RoleOf(who),
	})
	return nil
}

// Profile fetches the authoritative profile and refreshes the cached copy.
func (s *AuthService) Profile(ctx context.Context, clientID string) (*domain.Identity, error) {
	user, err := s.shells.Session(clientID).Profile(ctx)
	if err != nil {
		return nil, err
	}
	s.remember(ctx, clientID, *user)
	return user, nil
}

// UpdateProfile saves profile changes and refreshes the cached copy.
func (s *AuthService) UpdateProfile(ctx context.Context, clientID string, update domain.ProfileUpdate) (*domain.Identity, error) {
	user, err := s.shells.Session(clientID).UpdateProfile(ctx, update)
	if err != nil {
		return nil, err
	}
	s.remember(ctx, clientID, *user)
	return user, nil
}

func (s *AuthService) remember(ctx context.Context, clientID string, user domain.Identity) {
	store := s.shells.Store(clientID)
	if err := store.UpdateUser(ctx, user); err != nil {
		if !errors.Is(err, domain.ErrNoSession) {
			s.log.Warn().Err(err).Str("client", store.Namespace()).Msg("failed to cache profile")
		}
		return
	}
	s.shells.UpdateIdentity(clientID, user)
}

func (s *AuthService) record(e domain.AuditEvent) {
	if s.audit == nil {
		return
	}
	e.Timestamp = time.Now().UTC()
	s.audit.Record(e)
}
