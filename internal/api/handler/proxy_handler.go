package handler

import (
	"bytes"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/sewerwatch/portal/internal/core/ports"
)

const defaultMaxProxyBody = 10 << 20

// proxiedPrefixes are the backend areas the UI may reach through /api.
// The /auth area is only reachable through the session endpoints.
var proxiedPrefixes = map[string]struct{}{
	"admin":         {},
	"manager":       {},
	"teamleader":    {},
	"worker":        {},
	"public":        {},
	"messages":      {},
	"notifications": {},
}

// copiedHeaders are passed back from the backend response.
var copiedHeaders = []string{
	echo.HeaderContentType,
	echo.HeaderContentDisposition,
	echo.HeaderContentEncoding,
	"Cache-Control",
	"ETag",
	echo.HeaderLastModified,
}

// proxyPath returns the backend path below /api/, without its leading
// slash. Paths with dot segments, raw or percent-encoded, are refused so
// the area check cannot be walked around.
func proxyPath(u *url.URL) (string, bool) {
	raw := u.EscapedPath()
	rest, ok := strings.CutPrefix(raw, "/api/")
	if !ok {
		return "", false
	}
	decoded, err := url.PathUnescape(rest)
	if err != nil {
		return "", false
	}
	for _, seg := range strings.Split(decoded, "/") {
		if seg == "." || seg == ".." || strings.Contains(seg, "\\") {
			return "", false
		}
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+decoded), "/")
	if cleaned == "" || cleaned == "." {
		return "", false
	}
	return cleaned, true
}

// SessionSource hands out the authenticated backend view of a client.
type SessionSource interface {
	Session(clientID string) ports.UpstreamSession
}

// ProxyHandler relays /api/* to the backend with the client's bearer token,
// refreshing it on 401.
type ProxyHandler struct {
	sessions SessionSource
	maxBody  int64
	log      zerolog.Logger
}

func NewProxyHandler(sessions SessionSource, maxBody int64, log zerolog.Logger) *ProxyHandler {
	if maxBody <= 0 {
		maxBody = defaultMaxProxyBody
	}
	return &ProxyHandler{sessions: sessions, maxBody: maxBody, log: log}
}

// Forward relays one request.
//
// @Summary      Backend proxy
// @Tags         api
// @Param        path  path  string  true  "backend path, e.g. worker/jobs"
// @Success      200
// @Failure      401  {object}  errorResponse  "session expired"
// @Failure      404  {object}  errorResponse
// @Failure      502  {object}  errorResponse
// @Router       /api/{path} [get]
func (h *ProxyHandler) Forward(c echo.Context) error {
	clientID, err := ctxClientID(c)
	if err != nil {
		return err
	}

	rest, ok := proxyPath(c.Request().URL)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	area, _, _ := strings.Cut(rest, "/")
	if _, ok := proxiedPrefixes[area]; !ok {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}

	req := c.Request()
	raw, err := io.ReadAll(io.LimitReader(req.Body, h.maxBody+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "unreadable body"})
	}
	if int64(len(raw)) > h.maxBody {
		return c.JSON(http.StatusRequestEntityTooLarge, errorResponse{Error: "body too large"})
	}
	var body io.Reader
	if len(raw) > 0 {
		body = bytes.NewReader(raw)
	}

	resp, err := h.sessions.Session(clientID).Forward(req.Context(), req.Method, "/"+rest, c.QueryParams(), body, req.Header.Get(echo.HeaderContentType))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	for _, k := range copiedHeaders {
		if v := resp.Header.Get(k); v != "" {
			c.Response().Header().Set(k, v)
		}
	}
	c.Response().WriteHeader(resp.StatusCode)
	if _, err := io.Copy(c.Response(), resp.Body); err != nil {
		h.log.Debug().Err(err).Str("path", rest).Msg("proxy response copy interrupted")
	}
	return nil
}
