package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	// ClientCookieName carries the opaque id of a browser client.
	ClientCookieName = "portal_client"
	// ContextClientID is the echo context key holding the client id.
	ContextClientID = "client_id"
)

// ClientCookies issues the client cookie. The cookie is a browser-session
// cookie unless the client chose to be remembered.
type ClientCookies struct {
	Secure bool
	// MaxAge of a remembered client cookie.
	MaxAge time.Duration
}

// Middleware makes sure every request has a client id, minting one on
// first contact.
func (cc ClientCookies) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := ""
			if ck, err := c.Cookie(ClientCookieName); err == nil {
				if parsed, err := uuid.Parse(ck.Value); err == nil {
					id = parsed.String()
				}
			}
			if id == "" {
				id = uuid.NewString()
				cc.Issue(c, id, false)
			}
			c.Set(ContextClientID, id)
			return next(c)
		}
	}
}

// Issue (re)writes the client cookie. A persisted cookie outlives browser
// restarts; otherwise it ends with the browser session.
func (cc ClientCookies) Issue(c echo.Context, clientID string, persist bool) {
	ck := &http.Cookie{
		Name:     ClientCookieName,
		Value:    clientID,
		Path:     "/",
		HttpOnly: true,
		Secure:   cc.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if persist && cc.MaxAge > 0 {
		ck.MaxAge = int(cc.MaxAge / time.Second)
		ck.Expires = time.Now().Add(cc.MaxAge)
	}
	c.SetCookie(ck)
}

// ClientID returns the id stored by Middleware.
func ClientID(c echo.Context) string {
	id, _ := c.Get(ContextClientID).(string)
	return id
}
