package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sewerwatch/portal/internal/api/middleware"
	"github.com/sewerwatch/portal/internal/core/domain"
	"github.com/sewerwatch/portal/internal/core/service"
)

// ctxClientID returns the client id set by the client cookie middleware.
// Its absence means the route was registered without that middleware.
func ctxClientID(c echo.Context) (string, error) {
	id := middleware.ClientID(c)
	if id == "" {
		return "", echo.NewHTTPError(http.StatusInternalServerError, "client id missing")
	}
	return id, nil
}

// ctxAccess returns what the guard decided for the current view.
func ctxAccess(c echo.Context) (service.Decision, *domain.Identity, error) {
	decision, ok := c.Get(middleware.ContextDecision).(service.Decision)
	if !ok {
		return service.Decision{}, nil, echo.NewHTTPError(http.StatusInternalServerError, "view served without access check")
	}
	identity, _ := c.Get(middleware.ContextIdentity).(*domain.Identity)
	return decision, identity, nil
}
