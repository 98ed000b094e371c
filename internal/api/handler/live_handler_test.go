package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/sewerwatch/portal/internal/api/middleware"
	"github.com/sewerwatch/portal/internal/core/domain"
	"github.com/sewerwatch/portal/internal/core/service"
)

func liveServer(t *testing.T, reg *service.Registry, clientID string) string {
	t.Helper()
	e := echo.New()
	h := NewLiveHandler(reg, service.NewPoller(20*time.Millisecond, zerolog.Nop()), zerolog.Nop())
	e.GET("/live", h.Connect, func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(middleware.ContextClientID, clientID)
			return next(c)
		}
	})
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/live"
}

func TestLiveHandler_PushesUnreadCounts(t *testing.T) {
	up := &stubUpstream{countsFn: func(context.Context) (domain.UnreadCounts, error) {
		return domain.UnreadCounts{Notifications: 3, Messages: 1}, nil
	}}
	target := liveServer(t, signedInRegistry(t, up), "client-1")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, target, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	var msg liveMessage
	if err := wsjson.Read(ctx, conn, &msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "unread" || msg.Counts == nil || msg.Counts.Notifications != 3 || msg.Counts.Messages != 1 {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestLiveHandler_SessionExpired(t *testing.T) {
	up := &stubUpstream{countsFn: func(context.Context) (domain.UnreadCounts, error) {
		return domain.UnreadCounts{}, domain.ErrSessionExpired
	}}
	target := liveServer(t, signedInRegistry(t, up), "client-1")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, target, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	var msg liveMessage
	if err := wsjson.Read(ctx, conn, &msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "session_expired" {
		t.Fatalf("expected session_expired, got %+v", msg)
	}
	_, _, err = conn.Read(ctx)
	if websocket.CloseStatus(err) != websocket.StatusPolicyViolation {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}

func TestLiveHandler_AnonymousRejected(t *testing.T) {
	up := &stubUpstream{countsFn: func(context.Context) (domain.UnreadCounts, error) {
		t.Fatalf("anonymous client must not be polled")
		return domain.UnreadCounts{}, nil
	}}
	// client-2 has no stored session
	target := liveServer(t, signedInRegistry(t, up), "client-2")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, resp, err := websocket.Dial(ctx, target, nil)
	if err == nil {
		t.Fatalf("expected the upgrade to be refused")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
}
