package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Role is the closed set of staff roles the backend assigns.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleTeamLeader Role = "team_leader"
	RoleWorker     Role = "worker"
)

// Roles lists every known role in menu order.
var Roles = []Role{RoleAdmin, RoleManager, RoleTeamLeader, RoleWorker}

// Known reports whether r belongs to the closed role set.
func (r Role) Known() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleTeamLeader, RoleWorker:
		return true
	}
	return false
}

// UserStatus mirrors the account status reported by the backend.
type UserStatus string

const (
	StatusActive   UserStatus = "active"
	StatusInactive UserStatus = "inactive"
	StatusBlocked  UserStatus = "blocked"
)

// Revoked reports whether the account may no longer hold a session.
func (s UserStatus) Revoked() bool {
	switch UserStatus(strings.ToLower(string(s))) {
	case StatusInactive, StatusBlocked:
		return true
	}
	return false
}

// UserID accepts both string and numeric ids from the backend.
type UserID string

func (id *UserID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = UserID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = UserID(n.String())
	return nil
}

// Identity is the authenticated principal as the backend describes it.
type Identity struct {
	ID     UserID     `json:"id"`
	Name   string     `json:"name"`
	Email  string     `json:"email"`
	Role   Role       `json:"role"`
	Phone  string     `json:"phone,omitempty"`
	Status UserStatus `json:"status,omitempty"`
}

// Clone returns a copy that callers may keep without sharing state.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}

// RoleOf returns the role of i, or the empty role for a nil identity.
func RoleOf(i *Identity) Role {
	if i == nil {
		return ""
	}
	return i.Role
}

// ProfileUpdate carries the editable profile fields.
type ProfileUpdate struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// UnreadCounts is pushed to live clients while their socket is open.
type UnreadCounts struct {
	Notifications int `json:"notifications"`
	Messages      int `json:"messages"`
}
