package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/sewerwatch/portal/internal/api/metrics"
	"github.com/sewerwatch/portal/internal/core/domain"
	"github.com/sewerwatch/portal/internal/core/ports"
	"github.com/sewerwatch/portal/internal/core/service"
)

const (
	// ContextDecision holds the service.Decision of an allowed view.
	ContextDecision = "access_decision"
	// ContextIdentity holds the *domain.Identity the decision was made for.
	ContextIdentity = "identity"
)

// Guard checks every view request against the route table. While the
// client's startup check is still running the request waits for it, so a
// protected view is never answered from a half-known identity. Denied
// requests get a 302 to the path the guard picked; identity and storage
// are never touched.
func Guard(shells *service.Registry, audit ports.AuditSink, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			clientID := ClientID(c)
			if clientID == "" {
				return echo.NewHTTPError(http.StatusInternalServerError, "client id missing")
			}

			shell := shells.Mount(ctx, clientID)
			if err := shell.Wait(ctx); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "session check interrupted")
			}

			identity := shell.Identity()
			path := c.Request().URL.Path
			decision := service.Authorize(identity, path)
			if !decision.Allowed {
				metrics.GuardDecisionsTotal.WithLabelValues("redirect").Inc()
				log.Debug().
					Str("path", path).
					Str("role", string(domain.RoleOf(identity))).
					Str("to", decision.Redirect).
					Msg("view redirected")
				if route, known := domain.LookupRoute(service.NormalizePath(path)); audit != nil && known && !route.Public {
					audit.Record(domain.AuditEvent{
						Kind:      domain.AuditGuardRedirect,
						Client:    shells.Store(clientID).Namespace(),
						Role:      domain.RoleOf(identity),
						Path:      path,
						Detail:    decision.Redirect,
						Timestamp: time.Now().UTC(),
					})
				}
				return c.Redirect(http.StatusFound, decision.Redirect)
			}

			metrics.GuardDecisionsTotal.WithLabelValues("allow").Inc()
			c.Set(ContextDecision, decision)
			c.Set(ContextIdentity, identity)
			return next(c)
		}
	}
}
