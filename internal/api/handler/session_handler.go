package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sewerwatch/portal/internal/api/metrics"
	"github.com/sewerwatch/portal/internal/core/domain"
	"github.com/sewerwatch/portal/internal/core/ports"
	"github.com/sewerwatch/portal/internal/core/service"
)

// CookieIssuer rewrites the client cookie after login.
type CookieIssuer interface {
	Issue(c echo.Context, clientID string, persist bool)
}

// ShellMounter gives access to the shell of a client.
type ShellMounter interface {
	Mount(ctx context.Context, clientID string) *service.Shell
}

type SessionHandler struct {
	auth    ports.AuthService
	shells  ShellMounter
	cookies CookieIssuer
}

func NewSessionHandler(auth ports.AuthService, shells ShellMounter, cookies CookieIssuer) *SessionHandler {
	return &SessionHandler{auth: auth, shells: shells, cookies: cookies}
}

// Bootstrap reports the session state of the calling client. The first call
// of a client starts its identity check; until it settles the answer
// carries loading=true and the cached identity, if any.
//
// @Summary      Current session
// @Tags         session
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Router       /session [get]
func (h *SessionHandler) Bootstrap(c echo.Context) error {
	clientID, err := ctxClientID(c)
	if err != nil {
		return err
	}
	shell := h.shells.Mount(c.Request().Context(), clientID)
	return c.JSON(http.StatusOK, newSessionResponse(shell.Verification()))
}

// Login authenticates against the backend and opens a session.
//
// @Summary      Login
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  sessionResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      502   {object}  errorResponse
// @Router       /session/login [post]
func (h *SessionHandler) Login(c echo.Context) error {
	clientID, err := ctxClientID(c)
	if err != nil {
		return err
	}

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	user, err := h.auth.Login(c.Request().Context(), clientID, req.Email, req.Password, req.RememberMe)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			metrics.LoginsTotal.WithLabelValues("invalid").Inc()
		} else {
			metrics.LoginsTotal.WithLabelValues("error").Inc()
		}
		return err
	}
	metrics.LoginsTotal.WithLabelValues("success").Inc()

	h.cookies.Issue(c, clientID, req.RememberMe)
	return c.JSON(http.StatusOK, newSessionResponse(domain.Verification{
		Phase:    domain.PhaseVerified,
		Identity: user,
	}))
}

// Logout clears the session of the calling client.
//
// @Summary      Logout
// @Tags         session
// @Success      204
// @Router       /session/logout [post]
func (h *SessionHandler) Logout(c echo.Context) error {
	clientID, err := ctxClientID(c)
	if err != nil {
		return err
	}
	if err := h.auth.Logout(c.Request().Context(), clientID); err != nil {
		return err
	}
	h.cookies.Issue(c, clientID, false)
	return c.NoContent(http.StatusNoContent)
}

// Profile returns the authoritative profile of the signed-in user.
//
// @Summary      Profile
// @Tags         session
// @Produce      json
// @Success      200  {object}  profileResponse
// @Failure      401  {object}  errorResponse
// @Router       /session/profile [get]
func (h *SessionHandler) Profile(c echo.Context) error {
	clientID, err := ctxClientID(c)
	if err != nil {
		return err
	}
	user, err := h.auth.Profile(c.Request().Context(), clientID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profileResponse{User: user})
}

// UpdateProfile saves profile changes.
//
// @Summary      Update profile
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        body  body      profileRequest  true  "Profile fields to change"
// @Success      200   {object}  profileResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /session/profile [put]
func (h *SessionHandler) UpdateProfile(c echo.Context) error {
	clientID, err := ctxClientID(c)
	if err != nil {
		return err
	}

	var req profileRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	user, err := h.auth.UpdateProfile(c.Request().Context(), clientID, req.toDomain())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profileResponse{User: user})
}
