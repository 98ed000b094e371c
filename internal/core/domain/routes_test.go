package domain

import (
	"encoding/json"
	"testing"
)

func jsonUnmarshal(s string, v any) error {
	return json.Unmarshal([]byte(s), v)
}

func TestRoutes_UniquePaths(t *testing.T) {
	seen := make(map[string]bool)
	for _, r := range Routes {
		if seen[r.Path] {
			t.Fatalf("duplicate route %s", r.Path)
		}
		seen[r.Path] = true
		if !r.Public && len(r.AllowedRoles) == 0 {
			t.Fatalf("protected route %s has no allowed roles", r.Path)
		}
	}
}

func TestRoutes_ProfileOpenToEveryRole(t *testing.T) {
	profile, ok := LookupRoute(PathProfile)
	if !ok {
		t.Fatalf("profile route missing")
	}
	for _, r := range Roles {
		if !profile.Permits(r) {
			t.Fatalf("profile should permit %s", r)
		}
	}
	if profile.Permits("") {
		t.Fatalf("profile must not permit anonymous access")
	}
}

func TestRole_Known(t *testing.T) {
	if !RoleTeamLeader.Known() {
		t.Fatalf("team_leader should be known")
	}
	if Role("supervisor").Known() || Role("").Known() {
		t.Fatalf("unknown roles reported as known")
	}
}
