package service

import (
	"strings"

	"github.com/sewerwatch/portal/internal/core/domain"
)

var landingPaths = map[domain.Role]string{
	domain.RoleAdmin:      "/admin",
	domain.RoleManager:    "/manager",
	domain.RoleTeamLeader: "/teamleader",
	domain.RoleWorker:     "/worker",
}

// LandingPath returns the canonical route of a role, "/" for anything else.
func LandingPath(role domain.Role) string {
	if p, ok := landingPaths[role]; ok {
		return p
	}
	return domain.PathHome
}

// Decision is the outcome of an access check.
type Decision struct {
	Allowed  bool
	Redirect string
	Route    domain.RouteSpec
}

func allow(route domain.RouteSpec) Decision { return Decision{Allowed: true, Route: route} }

func redirect(to string) Decision { return Decision{Redirect: to} }

// Authorize decides whether identity may open path. It never fails: a
// visitor who cannot open path is sent somewhere valid for them.
func Authorize(identity *domain.Identity, path string) Decision {
	path = NormalizePath(path)
	route, known := domain.LookupRoute(path)

	if identity == nil {
		if known && route.Public {
			return allow(route)
		}
		return redirect(domain.PathHome)
	}

	landing := LandingPath(identity.Role)
	switch {
	case !known:
		return redirect(landing)
	case path == domain.PathHome || path == domain.PathLogin:
		// signed-in users skip the public landing and the login form
		if landing == domain.PathHome {
			return allow(route)
		}
		return redirect(landing)
	case route.Permits(identity.Role):
		return allow(route)
	}
	return redirect(landing)
}

// NavEntry is one item of the navigation menu.
type NavEntry struct {
	Label string `json:"label"`
	Icon  string `json:"icon"`
	Path  string `json:"path"`
}

// Navigation lists the menu entries of a role. Unknown roles get none.
func Navigation(role domain.Role) []NavEntry {
	if !role.Known() {
		return []NavEntry{}
	}
	entries := make([]NavEntry, 0, 8)
	for _, r := range domain.Routes {
		if r.Public || r.Hidden || !r.Permits(role) {
			continue
		}
		entries = append(entries, NavEntry{Label: r.Title, Icon: r.Icon, Path: r.Path})
	}
	return entries
}

// NormalizePath trims query, trailing slashes and empty input to a route key.
func NormalizePath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	p = strings.TrimRight(p, "/")
	if p == "" {
		return domain.PathHome
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
