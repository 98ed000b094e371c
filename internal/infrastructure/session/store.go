// Package session keeps the credentials of each browser client in two
// storage scopes: durable ("remember me") and ephemeral.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sewerwatch/portal/internal/core/domain"
	"github.com/sewerwatch/portal/internal/core/ports"
)

const (
	tokenSuffix = ":token"
	userSuffix  = ":user"
)

// Store is the credential store of one client.
type Store struct {
	ns        string
	durable   ports.Scope
	ephemeral ports.Scope
	log       zerolog.Logger
}

var _ ports.CredentialStore = (*Store)(nil)

type scoped struct {
	kind  domain.ScopeKind
	scope ports.Scope
}

// order is the lookup order of Read: durable wins over ephemeral.
func (s *Store) order() []scoped {
	return []scoped{
		{kind: domain.ScopeDurable, scope: s.durable},
		{kind: domain.ScopeEphemeral, scope: s.ephemeral},
	}
}

func (s *Store) Namespace() string { return s.ns }

func (s *Store) tokenKey() string { return s.ns + tokenSuffix }
func (s *Store) userKey() string  { return s.ns + userSuffix }

func (s *Store) Read(ctx context.Context) *domain.Session {
	for _, sc := range s.order() {
		token, ok, err := sc.scope.Get(ctx, s.tokenKey())
		if err != nil {
			s.log.Warn().Err(err).Str("client", s.ns).Str("scope", string(sc.kind)).Msg("credential read failed, treating as absent")
			continue
		}
		if !ok || token == "" {
			continue
		}
		return &domain.Session{Token: token, User: s.readUser(ctx, sc), Scope: sc.kind}
	}
	return nil
}

func (s *Store) readUser(ctx context.Context, sc scoped) *domain.Identity {
	raw, ok, err := sc.scope.Get(ctx, s.userKey())
	if err != nil {
		s.log.Warn().Err(err).Str("client", s.ns).Str("scope", string(sc.kind)).Msg("cached user read failed")
		return nil
	}
	if !ok || raw == "" {
		return nil
	}
	var user domain.Identity
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		s.log.Warn().Err(err).Str("client", s.ns).Msg("cached user is malformed, ignoring it")
		return nil
	}
	return &user
}

func (s *Store) Write(ctx context.Context, session domain.Session, remember bool) error {
	target := s.ephemeral
	if remember {
		target = s.durable
	}
	if err := target.Set(ctx, s.tokenKey(), session.Token); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	if session.User == nil {
		if err := target.Delete(ctx, s.userKey()); err != nil {
			return fmt.Errorf("drop cached user: %w", err)
		}
		return nil
	}
	return s.writeUser(ctx, target, *session.User)
}

func (s *Store) writeUser(ctx context.Context, target ports.Scope, user domain.Identity) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := target.Set(ctx, s.userKey(), string(raw)); err != nil {
		return fmt.Errorf("write user: %w", err)
	}
	return nil
}

// Clear attempts both scopes even when one of them fails.
func (s *Store) Clear(ctx context.Context) error {
	var errs []error
	for _, sc := range s.order() {
		if err := sc.scope.Delete(ctx, s.tokenKey(), s.userKey()); err != nil {
			errs = append(errs, fmt.Errorf("clear %s scope: %w", sc.kind, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Store) ClearToken(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	var (
		cleared bool
		errs    []error
	)
	for _, sc := range s.order() {
		ok, err := sc.scope.CompareAndDelete(ctx, s.tokenKey(), token, s.userKey())
		if err != nil {
			errs = append(errs, fmt.Errorf("clear %s scope: %w", sc.kind, err))
			continue
		}
		cleared = cleared || ok
	}
	return cleared, errors.Join(errs...)
}

func (s *Store) UpdateUser(ctx context.Context, user domain.Identity) error {
	for _, sc := range s.order() {
		token, ok, err := sc.scope.Get(ctx, s.tokenKey())
		if err != nil {
			return fmt.Errorf("locate token: %w", err)
		}
		if ok && token != "" {
			return s.writeUser(ctx, sc.scope, user)
		}
	}
	return domain.ErrNoSession
}

func (s *Store) RotateToken(ctx context.Context, old, token string) (bool, error) {
	if old == "" {
		return false, nil
	}
	for _, sc := range s.order() {
		swapped, err := sc.scope.CompareAndSwap(ctx, s.tokenKey(), old, token)
		if err != nil {
			return false, fmt.Errorf("rotate token in %s scope: %w", sc.kind, err)
		}
		if swapped {
			return true, nil
		}
	}
	return false, nil
}
