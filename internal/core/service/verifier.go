package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/sewerwatch/portal/internal/core/domain"
	"github.com/sewerwatch/portal/internal/core/ports"
)

// DefaultVerifyTimeout bounds the startup profile fetch.
const DefaultVerifyTimeout = 10 * time.Second

// Verifier runs the startup identity check of one client: trust the cached
// identity at once, then confirm it against the backend within a deadline.
type Verifier struct {
	timeout           time.Duration
	revokeOnForbidden bool
	log               zerolog.Logger
}

// NewVerifier returns a Verifier. A non-positive timeout uses DefaultVerifyTimeout.
func NewVerifier(timeout time.Duration, revokeOnForbidden bool, log zerolog.Logger) *Verifier {
	if timeout <= 0 {
		timeout = DefaultVerifyTimeout
	}
	return &Verifier{timeout: timeout, revokeOnForbidden: revokeOnForbidden, log: log}
}

type profileResult struct {
	user *domain.Identity
	err  error
}

// Apply feeds one event to the client state and reports whether it was
// accepted. Events arriving after the state settled are refused.
type Apply func(domain.Event) bool

// Run drives the check, handing each event to apply as it happens so the
// optimistic identity is visible before the network answers. Failures are
// logged and end in PhaseDegraded; they never clear stored credentials,
// except for an explicit rejection by the backend. The store is only
// written when apply accepted the outcome.
func (v *Verifier) Run(ctx context.Context, store ports.CredentialStore, api ports.UpstreamSession, apply Apply) {
	session := store.Read(ctx)
	if session == nil {
		apply(domain.Event{Kind: domain.EventTokenAbsent})
		return
	}
	apply(domain.Event{Kind: domain.EventTokenFound, User: session.User})

	fetchCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	results := make(chan profileResult, 1)
	go func() {
		user, err := api.Profile(fetchCtx)
		results <- profileResult{user: user, err: err}
	}()

	var res profileResult
	select {
	case res = <-results:
	case <-fetchCtx.Done():
		v.log.Warn().
			Str("client", store.Namespace()).
			Dur("timeout", v.timeout).
			Msg("profile verification timed out, keeping cached identity")
		apply(domain.Event{Kind: domain.EventTimedOut, Err: fetchCtx.Err()})
		return
	}

	log := v.log.With().Str("client", store.Namespace()).Logger()
	switch {
	case res.err == nil && res.user != nil && v.revokeOnForbidden && res.user.Status.Revoked():
		log.Info().Str("status", string(res.user.Status)).Msg("account no longer active, clearing session")
		v.reject(ctx, store, apply)
	case res.err == nil && res.user != nil:
		if !apply(domain.Event{Kind: domain.EventProfileFetched, User: res.user}) {
			log.Debug().Msg("profile arrived after the client settled, discarded")
			return
		}
		if err := store.UpdateUser(ctx, *res.user); err != nil {
			log.Warn().Err(err).Msg("failed to cache verified identity")
		}
	case errors.Is(res.err, domain.ErrSessionExpired):
		// the transport already cleared the store
		log.Info().Msg("session refresh failed during verification")
		apply(domain.Event{Kind: domain.EventRejected, Err: res.err})
	case errors.Is(res.err, domain.ErrForbidden) && v.revokeOnForbidden:
		log.Info().Msg("backend rejected the session, clearing it")
		v.reject(ctx, store, apply)
	case errors.Is(res.err, context.DeadlineExceeded):
		log.Warn().Err(res.err).Msg("profile verification timed out, keeping cached identity")
		apply(domain.Event{Kind: domain.EventTimedOut, Err: res.err})
	default:
		if res.err == nil {
			res.err = errors.New("empty profile response")
		}
		log.Warn().Err(res.err).Msg("profile verification failed, keeping cached identity")
		apply(domain.Event{Kind: domain.EventProfileFailed, Err: res.err})
	}
}

// reject signs the client out and clears its credentials. The token is
// read before the state changes: a login that lands after that point holds
// a different token and is left alone.
func (v *Verifier) reject(ctx context.Context, store ports.CredentialStore, apply Apply) {
	current := store.Read(ctx)
	if !apply(domain.Event{Kind: domain.EventRejected}) || current == nil {
		return
	}
	cleared, err := store.ClearToken(ctx, current.Token)
	switch {
	case err != nil:
		v.log.Error().Err(err).Str("client", store.Namespace()).Msg("failed to clear rejected session")
	case !cleared:
		v.log.Debug().Str("client", store.Namespace()).Msg("rejected token already replaced, store left alone")
	}
}
