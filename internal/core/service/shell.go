package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/sewerwatch/portal/internal/core/domain"
	"github.com/sewerwatch/portal/internal/core/ports"
)

const defaultShellCacheSize = 4096

// Shell is the identity state of one browser client.
type Shell struct {
	mu    sync.RWMutex
	state domain.Verification
	done  chan struct{}
	once  sync.Once
}

func newShell() *Shell {
	return &Shell{state: domain.Verification{Phase: domain.PhaseInit}, done: make(chan struct{})}
}

// apply reports whether e changed the state.
func (s *Shell) apply(e domain.Event) bool {
	s.mu.Lock()
	prev := s.state
	s.state = domain.Reduce(prev, e)
	state := s.state
	s.mu.Unlock()

	if state.Phase.Terminal() {
		s.once.Do(func() { close(s.done) })
	}
	return state.Phase != prev.Phase || state.Identity != prev.Identity
}

// Verification returns a snapshot of the state.
func (s *Shell) Verification() domain.Verification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.state
	v.Identity = v.Identity.Clone()
	return v
}

// Identity returns the current identity, nil when anonymous.
func (s *Shell) Identity() *domain.Identity {
	return s.Verification().Identity
}

// Loading reports whether the startup check is still running.
func (s *Shell) Loading() bool {
	return s.Verification().Loading()
}

// Wait blocks until the startup check has settled or ctx ends.
func (s *Shell) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RegistryOption customises a Registry.
type RegistryOption func(*Registry)

// WithSettledHook registers fn to observe every finished startup check.
func WithSettledHook(fn func(domain.Verification, time.Duration)) RegistryOption {
	return func(r *Registry) { r.onSettled = fn }
}

// Registry keeps the shells of recently seen clients. The first request of
// a client mounts its shell and starts the startup check exactly once.
type Registry struct {
	mu       sync.Mutex
	shells   *lru.Cache[string, *Shell]
	stores   ports.CredentialStores
	upstream ports.Upstream
	verifier *Verifier
	audit    ports.AuditSink
	log      zerolog.Logger

	onSettled func(domain.Verification, time.Duration)
}

// NewRegistry builds a Registry holding at most size shells.
func NewRegistry(
	size int,
	stores ports.CredentialStores,
	upstream ports.Upstream,
	verifier *Verifier,
	audit ports.AuditSink,
	log zerolog.Logger,
	opts ...RegistryOption,
) (*Registry, error) {
	if size <= 0 {
		size = defaultShellCacheSize
	}
	cache, err := lru.New[string, *Shell](size)
	if err != nil {
		return nil, fmt.Errorf("shell registry: %w", err)
	}
	r := &Registry{
		shells:   cache,
		stores:   stores,
		upstream: upstream,
		verifier: verifier,
		audit:    audit,
		log:      log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Mount returns the shell of clientID, starting its startup check when the
// client has not been seen yet (or its shell was evicted).
func (r *Registry) Mount(ctx context.Context, clientID string) *Shell {
	r.mu.Lock()
	if s, ok := r.shells.Get(clientID); ok {
		r.mu.Unlock()
		return s
	}
	s := newShell()
	r.shells.Add(clientID, s)
	r.mu.Unlock()

	go r.verify(context.WithoutCancel(ctx), clientID, s)
	return s
}

func (r *Registry) verify(ctx context.Context, clientID string, s *Shell) {
	started := time.Now()
	store := r.stores.For(clientID)
	r.verifier.Run(ctx, store, r.Session(clientID), r.applier(clientID, s))

	final := s.Verification()
	r.log.Debug().
		Str("client", store.Namespace()).
		Str("phase", string(final.Phase)).
		Msg("startup verification settled")
	r.record(domain.AuditEvent{
		Kind:   domain.AuditVerification,
		Client: store.Namespace(),
		UserID: idOf(final.Identity),
		Role:   domain.RoleOf(final.Identity),
		Detail: string(final.Phase),
	})
	if r.onSettled != nil {
		r.onSettled(final, time.Since(started))
	}
}

// applier feeds events to s. Once s has been evicted, or replaced by a
// newer shell of the same client, it still settles but every event is
// reported as refused, so the verifier leaves the store alone.
func (r *Registry) applier(clientID string, s *Shell) Apply {
	return func(e domain.Event) bool {
		changed := s.apply(e)
		return changed && r.owns(clientID, s)
	}
}

func (r *Registry) owns(clientID string, s *Shell) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.shells.Peek(clientID)
	return ok && cur == s
}

// Session returns the authenticated backend view of clientID. A failed
// token refresh signs the client out.
func (r *Registry) Session(clientID string) ports.UpstreamSession {
	store := r.stores.For(clientID)
	return r.upstream.ForClient(store, func() {
		r.SignOut(clientID)
		r.log.Info().Str("client", store.Namespace()).Msg("session expired, client signed out")
		r.record(domain.AuditEvent{Kind: domain.AuditForcedLogout, Client: store.Namespace()})
	})
}

// Store returns the credential store of clientID.
func (r *Registry) Store(clientID string) ports.CredentialStore {
	return r.stores.For(clientID)
}

// SignIn marks clientID as verified with identity.
func (r *Registry) SignIn(clientID string, identity domain.Identity) {
	r.settled(clientID).apply(domain.Event{Kind: domain.EventSignedIn, User: &identity})
}

// SignOut marks clientID as anonymous.
func (r *Registry) SignOut(clientID string) {
	r.settled(clientID).apply(domain.Event{Kind: domain.EventSignedOut})
}

// UpdateIdentity replaces the identity of a signed-in client.
func (r *Registry) UpdateIdentity(clientID string, identity domain.Identity) {
	if s, ok := r.peek(clientID); ok {
		s.apply(domain.Event{Kind: domain.EventIdentityUpdated, User: &identity})
	}
}

// Current returns the identity of a mounted client without mounting it.
func (r *Registry) Current(clientID string) *domain.Identity {
	if s, ok := r.peek(clientID); ok {
		return s.Identity()
	}
	return nil
}

func (r *Registry) peek(clientID string) (*Shell, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shells.Get(clientID)
}

// settled returns the shell of clientID without starting a startup check;
// callers immediately drive it into a terminal phase.
func (r *Registry) settled(clientID string) *Shell {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.shells.Get(clientID); ok {
		return s
	}
	s := newShell()
	r.shells.Add(clientID, s)
	return s
}

func (r *Registry) record(e domain.AuditEvent) {
	if r.audit == nil {
		return
	}
	e.Timestamp = time.Now().UTC()
	r.audit.Record(e)
}

func idOf(i *domain.Identity) domain.UserID {
	if i == nil {
		return ""
	}
	return i.ID
}
