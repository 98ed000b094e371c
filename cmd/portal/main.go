// Command portal runs the session gateway of the sewer maintenance portal.
//
// @title        Portal Gateway API
// @version      1.0
// @description  Session and access control gateway of the sewer maintenance portal.
// @BasePath     /
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	gomongo "go.mongodb.org/mongo-driver/mongo"

	"github.com/sewerwatch/portal/internal/api"
	"github.com/sewerwatch/portal/internal/api/metrics"
	"github.com/sewerwatch/portal/internal/api/middleware"
	"github.com/sewerwatch/portal/internal/core/domain"
	"github.com/sewerwatch/portal/internal/core/ports"
	"github.com/sewerwatch/portal/internal/core/service"
	"github.com/sewerwatch/portal/internal/infrastructure/db/mongo"
	"github.com/sewerwatch/portal/internal/infrastructure/db/redis"
	"github.com/sewerwatch/portal/internal/infrastructure/queue"
	"github.com/sewerwatch/portal/internal/infrastructure/session"
	"github.com/sewerwatch/portal/internal/infrastructure/upstream"
	"github.com/sewerwatch/portal/internal/pkg/config"
	"github.com/sewerwatch/portal/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: "portal",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Credential store ---
	var (
		rdb                *goredis.Client
		durable, ephemeral ports.Scope
	)
	switch cfg.Session.Backend {
	case "redis":
		var err error
		rdb, err = redis.Connect(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("failed to connect redis")
		}
		defer rdb.Close()
		durable = redis.NewDurableScope(rdb, cfg.Session.DurableTTL)
		ephemeral = redis.NewSlidingScope(rdb, cfg.Session.EphemeralTTL)
	default:
		log.Warn().Msg("using in-memory session store, sessions are lost on restart")
		durable = session.NewMemoryScope(cfg.Session.DurableTTL)
		ephemeral = session.NewMemoryScope(cfg.Session.EphemeralTTL)
	}
	stores := session.NewStores(durable, ephemeral, logger.Component("store"))

	// --- Audit trail ---
	var (
		db    *gomongo.Database
		audit ports.AuditSink = queue.Discard{}
	)
	auditCtx, stopAudit := context.WithCancel(context.WithoutCancel(ctx))
	defer stopAudit()
	var dispatcher *queue.Dispatcher
	if cfg.Mongo.URI != "" {
		client, database, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect mongo")
		}
		defer func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Warn().Err(err).Msg("mongo disconnect")
			}
		}()
		db = database

		repo := mongo.NewAuditRepository(db, cfg.Audit.Retention)
		if err := repo.EnsureIndexes(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to create audit indexes")
		}
		dispatcher = queue.NewDispatcher(cfg.Audit.Workers, repo, logger.Component("audit"),
			queue.WithDropHook(func(worker string) {
				metrics.AuditDroppedTotal.WithLabelValues(worker).Inc()
			}),
			queue.WithDepthHook(func(worker string, depth int) {
				metrics.AuditQueueDepth.WithLabelValues(worker).Set(float64(depth))
			}),
		)
		dispatcher.Start(auditCtx)
		audit = dispatcher
	} else {
		log.Info().Msg("MONGO_URI not set, audit trail disabled")
	}

	// --- Backend client ---
	backend, err := upstream.New(cfg.Upstream.URL, cfg.Upstream.Timeout, logger.Component("upstream"),
		upstream.WithRoundTripper(promhttp.InstrumentRoundTripperDuration(metrics.UpstreamRequestDuration, http.DefaultTransport)),
		upstream.WithRefreshObserver(func(outcome string) {
			metrics.TokenRefreshesTotal.WithLabelValues(outcome).Inc()
		}),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid upstream configuration")
	}

	// --- Session shell ---
	verifier := service.NewVerifier(cfg.Session.VerifyTimeout, cfg.Session.RevokeOnForbidden, logger.Component("verifier"))
	shells, err := service.NewRegistry(cfg.Session.ShellCacheSize, stores, backend, verifier, audit, logger.Component("shell"),
		service.WithSettledHook(func(v domain.Verification, took time.Duration) {
			metrics.VerificationsTotal.WithLabelValues(string(v.Phase)).Inc()
			metrics.VerificationDuration.Observe(took.Seconds())
		}),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build shell registry")
	}
	authService := service.NewAuthService(shells, backend, audit, logger.Component("auth"))

	e := api.NewRouter(api.Deps{
		Auth:   authService,
		Shells: shells,
		Poller: service.NewPoller(cfg.Live.PollInterval, logger.Component("poller")),
		Audit:  audit,
		Cookies: middleware.ClientCookies{
			Secure: cfg.Session.CookieSecure,
			MaxAge: cfg.Session.DurableTTL,
		},
		Mongo: db,
		Redis: rdb,
		Log:   log,
	})

	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Str("session_backend", cfg.Session.Backend).
			Str("upstream", cfg.Upstream.URL).
			Msg("portal gateway listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}

	stopAudit()
	if dispatcher != nil {
		dispatcher.Wait()
		log.Info().Msg("audit queue drained")
	}
}
