package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/droverhq/drover/config"
	"github.com/droverhq/drover/internal/agent/telemetry"
	"github.com/droverhq/drover/internal/store"
)

// Run starts the ops server: health and metrics endpoints, operator auth,
// and the read-only audit API over the postgres store. With sweeps enabled
// it also starts the cron scheduler that re-runs the configured benchmark
// session for regression tracking.
func Run(ctx context.Context, cfg config.Config, tele *telemetry.Telemetry) error {
	e := newEcho()

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	if !cfg.Storage.Postgres.Enabled {
		return fmt.Errorf("ops server requires postgres (storage.postgres.enabled)")
	}
	st, err := store.NewWithDSN(ctx, cfg.Storage.Postgres.DSN())
	if err != nil {
		return err
	}

	secret := cfg.Server.JWTSecret
	if secret == "" {
		return fmt.Errorf("jwt secret not configured (server.jwt_secret)")
	}

	auth := &AuthHandler{
		Store:      st,
		Secret:     []byte(secret),
		AdminEmail: cfg.Server.AdminEmail,
		AdminHash:  cfg.Server.AdminPasswordHash,
	}
	api := e.Group("/api")
	auth.Register(api.Group("/auth"))

	runs := &RunsHandler{Store: st}
	runs.Register(api, []byte(secret))

	if cfg.Server.SweepEnabled {
		var rdb *redis.Client
		if cfg.Storage.Redis.Enabled {
			rdb = redis.NewClient(&redis.Options{
				Addr:     cfg.Storage.Redis.Addr(),
				Password: cfg.Storage.Redis.Password,
				DB:       cfg.Storage.Redis.DB,
			})
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Addr(), err)
			}
		}
		sched := &Scheduler{
			Cfg:      cfg,
			Tele:     tele,
			Rdb:      rdb,
			Schedule: cfg.Server.SweepSchedule,
			Stop:     make(chan struct{}),
		}
		sched.Start()
		defer close(sched.Stop)
	}

	addr := cfg.Server.Address
	if addr == "" {
		addr = ":10001"
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

// newEcho builds the echo instance with the shared middleware stack and a
// JSON error handler that logs every failed request.
func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))
	return e
}
