package domain

// Phase is the step the startup identity check has reached for one client.
type Phase string

const (
	PhaseInit       Phase = "init"
	PhaseOptimistic Phase = "optimistic"
	PhaseVerified   Phase = "verified"
	PhaseDegraded   Phase = "degraded"
	PhaseLoggedOut  Phase = "logged_out"
)

// Terminal reports whether no verification work is pending.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseVerified, PhaseDegraded, PhaseLoggedOut:
		return true
	}
	return false
}

// EventKind enumerates the inputs of Reduce.
type EventKind int

const (
	EventTokenAbsent EventKind = iota
	EventTokenFound
	EventProfileFetched
	EventProfileFailed
	EventTimedOut
	EventRejected
	EventSignedIn
	EventSignedOut
	EventIdentityUpdated
)

// Event is one input to the verification machine. User is set for
// EventTokenFound (may be nil), EventProfileFetched, EventSignedIn and
// EventIdentityUpdated.
type Event struct {
	Kind EventKind
	User *Identity
	Err  error
}

// Verification is the state of the identity check.
type Verification struct {
	Phase    Phase
	Identity *Identity
	// Cached records whether a cached identity existed when the token was found.
	Cached bool
}

// Loading is true until the check reaches a terminal phase.
func (v Verification) Loading() bool {
	return !v.Phase.Terminal()
}

// Reduce applies e to v. Events that do not fit the current phase leave the
// state unchanged; in particular a profile result or timeout that lands after
// a terminal phase is discarded.
func Reduce(v Verification, e Event) Verification {
	switch e.Kind {
	case EventSignedIn:
		return Verification{Phase: PhaseVerified, Identity: e.User.Clone(), Cached: true}
	case EventSignedOut:
		return Verification{Phase: PhaseLoggedOut}
	case EventIdentityUpdated:
		if v.Identity == nil || e.User == nil || !v.Phase.Terminal() {
			return v
		}
		return Verification{Phase: PhaseVerified, Identity: e.User.Clone(), Cached: true}
	}

	switch v.Phase {
	case PhaseInit:
		switch e.Kind {
		case EventTokenAbsent:
			return Verification{Phase: PhaseLoggedOut}
		case EventTokenFound:
			return Verification{Phase: PhaseOptimistic, Identity: e.User.Clone(), Cached: e.User != nil}
		}
	case PhaseOptimistic:
		switch e.Kind {
		case EventProfileFetched:
			if e.User == nil {
				return v
			}
			return Verification{Phase: PhaseVerified, Identity: e.User.Clone(), Cached: v.Cached}
		case EventProfileFailed, EventTimedOut:
			if !v.Cached {
				return Verification{Phase: PhaseDegraded}
			}
			return Verification{Phase: PhaseDegraded, Identity: v.Identity, Cached: true}
		case EventRejected:
			return Verification{Phase: PhaseLoggedOut}
		}
	}
	return v
}
