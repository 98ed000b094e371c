package service

import (
	"testing"

	"github.com/sewerwatch/portal/internal/core/domain"
)

func TestLandingPath(t *testing.T) {
	cases := map[domain.Role]string{
		domain.RoleAdmin:      "/admin",
		domain.RoleManager:    "/manager",
		domain.RoleTeamLeader: "/teamleader",
		domain.RoleWorker:     "/worker",
		"":                    "/",
		"supervisor":          "/",
		"ADMIN":               "/",
	}
	for role, want := range cases {
		if got := LandingPath(role); got != want {
			t.Fatalf("LandingPath(%q) = %q, want %q", role, got, want)
		}
	}
}

func TestLandingPath_PermittedByGuard(t *testing.T) {
	for _, role := range domain.Roles {
		landing := LandingPath(role)
		route, ok := domain.LookupRoute(landing)
		if !ok {
			t.Fatalf("landing %s of %s is not a declared route", landing, role)
		}
		if !route.Permits(role) {
			t.Fatalf("landing %s does not permit %s", landing, role)
		}
		d := Authorize(&domain.Identity{Role: role}, landing)
		if !d.Allowed {
			t.Fatalf("guard rejects %s on its own landing: %+v", role, d)
		}
	}
}

func TestAuthorize_AnonymousRedirectsHome(t *testing.T) {
	for _, r := range domain.Routes {
		d := Authorize(nil, r.Path)
		if r.Public {
			if !d.Allowed {
				t.Fatalf("public route %s rejected for anonymous", r.Path)
			}
			continue
		}
		if d.Allowed || d.Redirect != "/" {
			t.Fatalf("anonymous on %s: %+v", r.Path, d)
		}
	}
	if d := Authorize(nil, "/does/not/exist"); d.Redirect != "/" {
		t.Fatalf("anonymous on unknown path: %+v", d)
	}
}

func TestAuthorize_WrongRoleRedirectsToLanding(t *testing.T) {
	worker := &domain.Identity{ID: "1", Role: domain.RoleWorker}
	for _, path := range []string{"/admin", "/admin/reports", "/manager/teams", "/teamleader/jobs"} {
		d := Authorize(worker, path)
		if d.Allowed {
			t.Fatalf("worker allowed on %s", path)
		}
		if d.Redirect != "/worker" {
			t.Fatalf("worker on %s redirected to %q", path, d.Redirect)
		}
	}
}

func TestAuthorize_SignedInSkipsHomeAndLogin(t *testing.T) {
	mgr := &domain.Identity{Role: domain.RoleManager}
	for _, path := range []string{"/", "", "/login", "/nowhere"} {
		if d := Authorize(mgr, path); d.Redirect != "/manager" {
			t.Fatalf("manager on %q: %+v", path, d)
		}
	}
	if d := Authorize(mgr, "/incident-report"); !d.Allowed {
		t.Fatalf("public report form should stay open: %+v", d)
	}
}

func TestAuthorize_UnknownRole(t *testing.T) {
	odd := &domain.Identity{Role: "supervisor"}
	if d := Authorize(odd, "/admin"); d.Redirect != "/" {
		t.Fatalf("unknown role on protected route: %+v", d)
	}
	if d := Authorize(odd, "/"); !d.Allowed {
		t.Fatalf("unknown role should see the public landing: %+v", d)
	}
}

func TestAuthorize_AllowsAndNormalizes(t *testing.T) {
	admin := &domain.Identity{Role: domain.RoleAdmin}
	d := Authorize(admin, "/admin/users/?tab=active")
	if !d.Allowed || d.Route.Path != "/admin/users" {
		t.Fatalf("expected admin users allowed, got %+v", d)
	}
	if d := Authorize(admin, "/admin/reports"); !d.Allowed {
		t.Fatalf("hidden reports route must stay reachable: %+v", d)
	}
}

func TestNavigation_UnknownRoleEmpty(t *testing.T) {
	for _, role := range []domain.Role{"", "guest", "Admin"} {
		nav := Navigation(role)
		if nav == nil || len(nav) != 0 {
			t.Fatalf("Navigation(%q) = %v, want empty", role, nav)
		}
	}
}

func TestNavigation_ConsistentWithGuard(t *testing.T) {
	for _, role := range domain.Roles {
		who := &domain.Identity{Role: role}
		listed := make(map[string]bool)
		for _, e := range Navigation(role) {
			listed[e.Path] = true
			if d := Authorize(who, e.Path); !d.Allowed {
				t.Fatalf("%s menu links to %s which the guard rejects", role, e.Path)
			}
		}
		for _, r := range domain.Routes {
			if r.Public || r.Hidden {
				continue
			}
			if Authorize(who, r.Path).Allowed && !listed[r.Path] {
				t.Fatalf("%s may open %s but the menu omits it", role, r.Path)
			}
		}
		if !listed[LandingPath(role)] {
			t.Fatalf("%s menu misses its landing", role)
		}
	}
}

func TestNavigation_AdminReportsHidden(t *testing.T) {
	for _, e := range Navigation(domain.RoleAdmin) {
		if e.Path == "/admin/reports" {
			t.Fatalf("reports should not be advertised")
		}
	}
	nav := Navigation(domain.RoleTeamLeader)
	if len(nav) != 5 || nav[0].Path != "/teamleader" || nav[len(nav)-1].Path != "/profile" {
		t.Fatalf("unexpected team leader menu: %+v", nav)
	}
}
