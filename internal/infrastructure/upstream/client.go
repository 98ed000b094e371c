// Package upstream talks to the incident-tracking REST backend on behalf of
// portal clients.
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
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/sewerwatch/portal/internal/core/domain"
	"github.com/sewerwatch/portal/internal/core/ports"
)

const (
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 4 << 10
)

// errRefreshRejected marks a refresh the backend answered with a refusal.
// Any failed refresh ends the session; the distinction only feeds metrics.
var errRefreshRejected = errors.New("refresh rejected")

// Client is the unauthenticated entry point of the backend. Per-client,
// bearer-authenticated access goes through ForClient.
type Client struct {
	base      *url.URL
	timeout   time.Duration
	transport http.RoundTripper
	plain     *http.Client
	refreshes singleflight.Group
	observe   func(outcome string)
	log       zerolog.Logger
}

var _ ports.Upstream = (*Client)(nil)

// Option customises a Client built by New.
type Option func(*Client)

// WithRoundTripper replaces the base transport, e.g. to instrument it.
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(c *Client) { c.transport = rt }
}

// WithRefreshObserver is told the outcome of every refresh attempt:
// "ok", "rejected", "error" or "superseded".
func WithRefreshObserver(fn func(outcome string)) Option {
	return func(c *Client) { c.observe = fn }
}

// New returns a Client for the backend at baseURL, which must be absolute.
// A non-positive timeout uses the default.
func New(baseURL string, timeout time.Duration, log zerolog.Logger, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("upstream url %q must be absolute", baseURL)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		base:      base,
		timeout:   timeout,
		transport: http.DefaultTransport,
		observe:   func(string) {},
		log:       log,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.plain = &http.Client{Transport: c.transport, Timeout: timeout}
	return c, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + "/" + strings.TrimLeft(path, "/")
	u.RawQuery = query.Encode()
	return u.String()
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string           `json:"token"`
	User  *domain.Identity `json:"user"`
}

// Login exchanges credentials for a token and the user record.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	body, err := json.Marshal(loginRequest{Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("encode login: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/auth/login", nil), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.plain.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: login: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusNotFound,
		resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, domain.ErrInvalidCredentials
	case resp.StatusCode >= 300:
		return nil, statusError("login", resp)
	}

	var out loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode login response: %v", domain.ErrUpstreamUnavailable, err)
	}
	return &domain.Session{Token: out.Token, User: out.User}, nil
}

type refreshResponse struct {
	Token string `json:"token"`
}

// refresh trades the current (possibly expired) token for a new one.
func (c *Client) refresh(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/auth/refresh", nil), nil)
	if err != nil {
		return "", fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.plain.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: refresh: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", statusError("refresh", resp)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d", errRefreshRejected, resp.StatusCode)
	}
	var out refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.Token == "" {
		return "", fmt.Errorf("%w: response carried no token", errRefreshRejected)
	}
	return out.Token, nil
}

// ForClient returns a session bound to store. Every request carries the
// stored bearer token and goes through the refresh flow on 401.
func (c *Client) ForClient(store ports.CredentialStore, onExpired func()) ports.UpstreamSession {
	rt := &refreshTransport{
		base:      c.transport,
		store:     store,
		client:    c,
		onExpired: onExpired,
		now:       time.Now,
	}
	return &SessionClient{
		client: c,
		http:   &http.Client{Transport: rt, Timeout: c.timeout},
	}
}

func statusError(op string, resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return fmt.Errorf("%w: %s: status %d: %s", domain.ErrUpstreamUnavailable, op, resp.StatusCode, strings.TrimSpace(string(msg)))
}
