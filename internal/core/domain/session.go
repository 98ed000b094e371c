package domain

// ScopeKind names the two lifetimes a session can be stored under.
type ScopeKind string

const (
	// ScopeDurable survives browser restarts ("remember me").
	ScopeDurable ScopeKind = "durable"
	// ScopeEphemeral ends with the browser session.
	ScopeEphemeral ScopeKind = "ephemeral"
)

// ScopeFor picks the scope a login should be written to.
func ScopeFor(remember bool) ScopeKind {
	if remember {
		return ScopeDurable
	}
	return ScopeEphemeral
}

// Session pairs a bearer token with the cached identity.
// User is nil when the cached record is missing or unreadable.
type Session struct {
	Token string
	User  *Identity
	Scope ScopeKind
}
