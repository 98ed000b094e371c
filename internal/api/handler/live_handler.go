package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/sewerwatch/portal/internal/api/metrics"
	"github.com/sewerwatch/portal/internal/core/domain"
	"github.com/sewerwatch/portal/internal/core/service"
)

// LiveShells is what the live socket needs from the shell registry.
type LiveShells interface {
	ShellMounter
	SessionSource
}

// LiveHandler pushes unread counters to signed-in clients. Polling runs
// exactly as long as the socket is open.
type LiveHandler struct {
	shells LiveShells
	poller *service.Poller
	log    zerolog.Logger
}

func NewLiveHandler(shells LiveShells, poller *service.Poller, log zerolog.Logger) *LiveHandler {
	return &LiveHandler{shells: shells, poller: poller, log: log}
}

// Connect upgrades to a websocket streaming {"type":"unread"} messages, and
// a final {"type":"session_expired"} when the session cannot be refreshed.
//
// @Summary      Live unread counters
// @Tags         live
// @Success      101
// @Failure      401  {object}  errorResponse
// @Router       /live [get]
func (h *LiveHandler) Connect(c echo.Context) error {
	clientID, err := ctxClientID(c)
	if err != nil {
		return err
	}
	shell := h.shells.Mount(c.Request().Context(), clientID)
	if err := shell.Wait(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "session check interrupted")
	}
	if shell.Identity() == nil {
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "not signed in"})
	}

	conn, err := websocket.Accept(c.Response(), c.Request(), nil)
	if err != nil {
		// Accept already answered the client
		h.log.Debug().Err(err).Msg("live upgrade failed")
		return nil
	}
	defer conn.CloseNow()

	metrics.LiveConnections.Inc()
	defer metrics.LiveConnections.Dec()

	ctx, cancel := context.WithCancel(conn.CloseRead(c.Request().Context()))
	defer cancel()

	counts := make(chan domain.UnreadCounts)
	done := make(chan error, 1)
	api := h.shells.Session(clientID)
	go func() { done <- h.poller.Run(ctx, api.UnreadCounts, counts) }()

	for {
		select {
		case uc := <-counts:
			if err := wsjson.Write(ctx, conn, liveMessage{Type: "unread", Counts: &uc}); err != nil {
				h.log.Debug().Err(err).Msg("live write failed")
				return nil
			}
		case err := <-done:
			if errors.Is(err, domain.ErrSessionExpired) {
				_ = wsjson.Write(ctx, conn, liveMessage{Type: "session_expired"})
				_ = conn.Close(websocket.StatusPolicyViolation, "session expired")
				return nil
			}
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return nil
		}
	}
}
