package domain

// RouteSpec declares one client-side screen and who may open it.
// The same table drives the router, the access guard and the menus.
type RouteSpec struct {
	Path         string
	Title        string
	Icon         string
	AllowedRoles []Role
	// Public routes are open to anonymous visitors.
	Public bool
	// Hidden routes stay reachable by URL but are left out of the menus.
	Hidden bool
}

// Permits reports whether role r may open the route.
func (s RouteSpec) Permits(r Role) bool {
	if s.Public {
		return true
	}
	for _, allowed := range s.AllowedRoles {
		if allowed == r {
			return true
		}
	}
	return false
}

const (
	PathHome             = "/"
	PathLogin            = "/login"
	PathIncidentReport   = "/incident-report"
	PathIncidentProgress = "/incident-progress"
	PathProfile          = "/profile"
)

var (
	onlyAdmin      = []Role{RoleAdmin}
	onlyManager    = []Role{RoleManager}
	onlyTeamLeader = []Role{RoleTeamLeader}
	onlyWorker     = []Role{RoleWorker}
)

// Routes is the complete route surface, in menu order per role.
var Routes = []RouteSpec{
	{Path: PathHome, Title: "Home", Icon: "home", Public: true},
	{Path: PathLogin, Title: "Sign in", Icon: "login", Public: true},
	{Path: PathIncidentReport, Title: "Report an incident", Icon: "report_problem", Public: true},
	{Path: PathIncidentProgress, Title: "Track an incident", Icon: "track_changes", Public: true},

	{Path: "/admin", Title: "Dashboard", Icon: "dashboard", AllowedRoles: onlyAdmin},
	{Path: "/admin/users", Title: "Users", Icon: "people", AllowedRoles: onlyAdmin},
	{Path: "/admin/stats", Title: "Statistics", Icon: "bar_chart", AllowedRoles: onlyAdmin},
	{Path: "/admin/reports", Title: "Reports", Icon: "assessment", AllowedRoles: onlyAdmin, Hidden: true},

	{Path: "/manager", Title: "Dashboard", Icon: "dashboard", AllowedRoles: onlyManager},
	{Path: "/manager/teams", Title: "Teams", Icon: "groups", AllowedRoles: onlyManager},
	{Path: "/manager/incidents", Title: "Incidents", Icon: "report", AllowedRoles: onlyManager},
	{Path: "/manager/stats", Title: "Statistics", Icon: "bar_chart", AllowedRoles: onlyManager},

	{Path: "/teamleader", Title: "Dashboard", Icon: "dashboard", AllowedRoles: onlyTeamLeader},
	{Path: "/teamleader/jobs", Title: "Jobs", Icon: "work", AllowedRoles: onlyTeamLeader},
	{Path: "/teamleader/progress", Title: "Progress", Icon: "timeline", AllowedRoles: onlyTeamLeader},
	{Path: "/teamleader/reports", Title: "Reports", Icon: "description", AllowedRoles: onlyTeamLeader},

	{Path: "/worker", Title: "Dashboard", Icon: "dashboard", AllowedRoles: onlyWorker},
	{Path: "/worker/jobs", Title: "My jobs", Icon: "work", AllowedRoles: onlyWorker},
	{Path: "/worker/history", Title: "History", Icon: "history", AllowedRoles: onlyWorker},

	{Path: PathProfile, Title: "Profile", Icon: "person", AllowedRoles: Roles},
}

var routeIndex = func() map[string]RouteSpec {
	idx := make(map[string]RouteSpec, len(Routes))
	for _, r := range Routes {
		idx[r.Path] = r
	}
	return idx
}()

// LookupRoute returns the route declared for path.
func LookupRoute(path string) (RouteSpec, bool) {
	r, ok := routeIndex[path]
	return r, ok
}
