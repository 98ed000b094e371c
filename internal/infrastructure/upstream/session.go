package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/sewerwatch/portal/internal/core/domain"
	"github.com/sewerwatch/portal/internal/core/ports"
)

// SessionClient is the backend as seen by one signed-in client.
type SessionClient struct {
	client *Client
	http   *http.Client
}

var _ ports.UpstreamSession = (*SessionClient)(nil)

// userEnvelope accepts both a bare user and {"user": {...}}.
type userEnvelope struct {
	domain.Identity
	User *domain.Identity `json:"user"`
}

func (e userEnvelope) identity() *domain.Identity {
	if e.User != nil {
		return e.User
	}
	id := e.Identity
	return &id
}

func (s *SessionClient) Profile(ctx context.Context) (*domain.Identity, error) {
	var env userEnvelope
	if err := s.doJSON(ctx, http.MethodGet, "/auth/profile", nil, &env); err != nil {
		return nil, err
	}
	return env.identity(), nil
}

func (s *SessionClient) UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (*domain.Identity, error) {
	var env userEnvelope
	if err := s.doJSON(ctx, http.MethodPut, "/auth/profile", update, &env); err != nil {
		return nil, err
	}
	return env.identity(), nil
}

type countResponse struct {
	Count int `json:"count"`
}

func (s *SessionClient) UnreadCounts(ctx context.Context) (domain.UnreadCounts, error) {
	var notes, msgs countResponse
	if err := s.doJSON(ctx, http.MethodGet, "/notifications/unread-count", nil, &notes); err != nil {
		return domain.UnreadCounts{}, err
	}
	if err := s.doJSON(ctx, http.MethodGet, "/messages/unread-count", nil, &msgs); err != nil {
		return domain.UnreadCounts{}, err
	}
	return domain.UnreadCounts{Notifications: notes.Count, Messages: msgs.Count}, nil
}

// Forward relays a request to the backend and hands back the raw response.
// The caller closes its body. A body must be replayable (bytes or strings
// reader) for the request to be retried after a refresh.
func (s *SessionClient) Forward(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.client.endpoint(path, query), body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		if errors.Is(err, domain.ErrSessionExpired) || errors.Is(err, domain.ErrNoSession) || ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s %s: %v", domain.ErrUpstreamUnavailable, method, path, err)
	}
	return resp, nil
}

func (s *SessionClient) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		body, contentType = bytes.NewReader(raw), "application/json"
	}

	resp, err := s.Forward(ctx, method, path, nil, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return domain.ErrForbidden
	}
	if resp.StatusCode >= 300 {
		return statusError(path, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", domain.ErrUpstreamUnavailable, path, err)
	}
	return nil
}
