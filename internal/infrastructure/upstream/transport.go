package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sewerwatch/portal/internal/core/domain"
	"github.com/sewerwatch/portal/internal/core/ports"
)

// errSuperseded means the store no longer held the token being refreshed.
var errSuperseded = errors.New("token superseded")

// refreshTransport attaches the stored bearer token to every request and
// runs the refresh flow: one refresh per request on 401 (or on a token
// already past its exp), then exactly one retry.
type refreshTransport struct {
	base      http.RoundTripper
	store     ports.CredentialStore
	client    *Client
	onExpired func()
	now       func() time.Time
}

func (t *refreshTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	session := t.store.Read(ctx)
	if session == nil || session.Token == "" {
		closeBody(req)
		return nil, domain.ErrNoSession
	}
	token := session.Token

	if t.expired(token) {
		next, err := t.renew(ctx, token)
		if err != nil {
			closeBody(req)
			return nil, err
		}
		return t.send(req, next)
	}

	resp, err := t.send(req, token)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		// the body is gone; hand the 401 back
		return resp, nil
	}
	drain(resp)

	next, err := t.renew(ctx, token)
	if err != nil {
		return nil, err
	}
	retry := req.Clone(ctx)
	if req.GetBody != nil {
		if retry.Body, err = req.GetBody(); err != nil {
			return nil, fmt.Errorf("rewind request body: %w", err)
		}
	}
	return t.send(retry, next)
}

func (t *refreshTransport) send(req *http.Request, token string) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(out)
}

// expired reports whether token is a JWT whose exp has passed. Opaque
// tokens are never considered expired here.
func (t *refreshTransport) expired(token string) bool {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !claims.ExpiresAt.After(t.now())
}

// renew returns a fresh token for old. Concurrent renewals of the same
// token share one backend call. The new token is only stored if old is
// still current, so a Clear that happened meanwhile is never undone.
func (t *refreshTransport) renew(ctx context.Context, old string) (string, error) {
	current := t.store.Read(ctx)
	if current == nil {
		return "", domain.ErrSessionExpired
	}
	if current.Token != old {
		return current.Token, nil
	}

	key := t.store.Namespace() + "\x00" + old
	v, err, _ := t.client.refreshes.Do(key, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.client.timeout)
		defer cancel()

		next, err := t.client.refresh(rctx, old)
		if err != nil {
			if errors.Is(err, errRefreshRejected) {
				t.client.observe("rejected")
			} else {
				t.client.observe("error")
			}
			return "", t.expire(ctx, old, err)
		}

		swapped, err := t.store.RotateToken(rctx, old, next)
		if err != nil {
			t.client.observe("error")
			return "", fmt.Errorf("store refreshed token: %w", err)
		}
		if !swapped {
			t.client.observe("superseded")
			return "", errSuperseded
		}
		t.client.observe("ok")
		return next, nil
	})

	if errors.Is(err, errSuperseded) {
		current = t.store.Read(ctx)
		if current == nil || current.Token == old {
			return "", domain.ErrSessionExpired
		}
		return current.Token, nil
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// expire ends the session of old after a failed refresh. Both scopes are
// cleared and onExpired fires only while old is still the stored token;
// a login that replaced it meanwhile is left alone.
func (t *refreshTransport) expire(ctx context.Context, old string, cause error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.client.timeout)
	defer cancel()

	log := t.client.log.With().Str("client", t.store.Namespace()).Logger()
	cleared, err := t.store.ClearToken(ctx, old)
	if err != nil {
		log.Error().Err(err).Msg("failed to clear expired session")
	}
	if !cleared && err == nil {
		log.Debug().Err(cause).Msg("token refresh failed for a token already replaced")
		return errSuperseded
	}
	log.Info().Err(cause).Msg("token refresh failed, session cleared")
	if t.onExpired != nil {
		t.onExpired()
	}
	return fmt.Errorf("%w: %v", domain.ErrSessionExpired, cause)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}

// closeBody honours the RoundTripper contract of closing the request body
// even when the request is never sent.
func closeBody(req *http.Request) {
	if req.Body != nil {
		_ = req.Body.Close()
	}
}
