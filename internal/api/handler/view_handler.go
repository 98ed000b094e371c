package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sewerwatch/portal/internal/core/domain"
	"github.com/sewerwatch/portal/internal/core/service"
)

// ViewHandler answers routed screens with their view model. It runs behind
// the access guard, which already decided the request may be served.
type ViewHandler struct{}

func NewViewHandler() *ViewHandler {
	return &ViewHandler{}
}

// Show renders the view model of the requested route.
//
// @Summary      View model of a routed screen
// @Tags         views
// @Produce      json
// @Success      200  {object}  viewResponse
// @Success      302  "redirect chosen by the access guard"
// @Router       /{path} [get]
func (h *ViewHandler) Show(c echo.Context) error {
	decision, identity, err := ctxAccess(c)
	if err != nil {
		return err
	}
	route := decision.Route
	return c.JSON(http.StatusOK, viewResponse{
		Path:       route.Path,
		Title:      route.Title,
		Icon:       route.Icon,
		Public:     route.Public,
		User:       identity,
		Navigation: service.Navigation(domain.RoleOf(identity)),
	})
}
