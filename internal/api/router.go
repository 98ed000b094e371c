package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.mongodb.org/mongo-driver/mongo"

	_ "github.com/sewerwatch/portal/docs"
	"github.com/sewerwatch/portal/internal/api/handler"
	"github.com/sewerwatch/portal/internal/api/middleware"
	"github.com/sewerwatch/portal/internal/core/domain"
	"github.com/sewerwatch/portal/internal/core/ports"
	"github.com/sewerwatch/portal/internal/core/service"
)

// Deps carries everything the HTTP layer is wired to.
type Deps struct {
	Auth    ports.AuthService
	Shells  *service.Registry
	Poller  *service.Poller
	Audit   ports.AuditSink
	Cookies middleware.ClientCookies
	Mongo   *mongo.Database // optional
	Redis   *redis.Client   // optional
	Log     zerolog.Logger
	// Registerer receives the request metrics; nil means the default registry.
	Registerer prometheus.Registerer
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:                 "portal",
		DoNotUseRequestPathFor404: true,
		Registerer:                d.Registerer,
	}))

	// --- Operational routes (no client cookie) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(d.Mongo, d.Redis)
	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", readinessHandler.Readiness)
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	clientMW := d.Cookies.Middleware()
	guard := middleware.Guard(d.Shells, d.Audit, d.Log.With().Str("component", "guard").Logger())

	// --- Session endpoints ---
	sessionHandler := handler.NewSessionHandler(d.Auth, d.Shells, d.Cookies)
	session := e.Group("/session", clientMW)
	session.GET("", sessionHandler.Bootstrap)
	session.POST("/login", sessionHandler.Login)
	session.POST("/logout", sessionHandler.Logout)
	session.GET("/profile", sessionHandler.Profile)
	session.PUT("/profile", sessionHandler.UpdateProfile)

	// --- Backend proxy and live counters ---
	proxyHandler := handler.NewProxyHandler(d.Shells, 0, d.Log)
	e.Any("/api/*", proxyHandler.Forward, clientMW)

	liveHandler := handler.NewLiveHandler(d.Shells, d.Poller, d.Log.With().Str("component", "live").Logger())
	e.GET("/live", liveHandler.Connect, clientMW)

	// --- Views: every route of the table, plus a catch-all the guard redirects ---
	viewHandler := handler.NewViewHandler()
	for _, r := range domain.Routes {
		e.GET(r.Path, viewHandler.Show, clientMW, guard)
	}
	e.GET("/*", viewHandler.Show, clientMW, guard)

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURIPath:   true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("path", v.URIPath).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}
