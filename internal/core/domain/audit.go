package domain

import "time"

// AuditKind classifies a recorded session event.
type AuditKind string

const (
	AuditLogin         AuditKind = "login"
	AuditLoginFailed   AuditKind = "login_failed"
	AuditLogout        AuditKind = "logout"
	AuditForcedLogout  AuditKind = "forced_logout"
	AuditVerification  AuditKind = "verification"
	AuditGuardRedirect AuditKind = "guard_redirect"
)

// AuditEvent is one entry of the session audit trail.
type AuditEvent struct {
	Kind      AuditKind
	Client    string // hashed client namespace, never the raw cookie
	UserID    UserID
	Role      Role
	Path      string
	Detail    string
	Timestamp time.Time
}
