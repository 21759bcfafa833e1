// Package server exposes the ground-station HTTP API consumed by the
// browser dashboard.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dkrasnov/foxground/internal/auth"
	"github.com/dkrasnov/foxground/internal/config"
	"github.com/dkrasnov/foxground/internal/control"
	"github.com/dkrasnov/foxground/internal/roster"
	"github.com/dkrasnov/foxground/internal/stream"
	"github.com/dkrasnov/foxground/internal/telemetry"
	"github.com/dkrasnov/foxground/internal/tools"
	"github.com/dkrasnov/foxground/internal/upgrade"
)

// Deps carries the wired components for the HTTP surface. Handlers hold
// no state of their own; components serialize internally where the
// underlying resource demands it.
type Deps struct {
	Config  *config.Config
	Reader  *telemetry.Reader
	Roster  *roster.Store
	Control *control.Channel
	Tools   *tools.Runner
	Stream  *stream.Manager
	Auth    *auth.Gate
	Upgrade *upgrade.Manager
	Log     *zap.Logger
}

// Start launches the HTTP server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, deps Deps) error {
	if deps.Reader == nil {
		return fmt.Errorf("server: telemetry reader is required")
	}
	if deps.Config == nil {
		return fmt.Errorf("server: config is required")
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}

	router := NewRouter(deps)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", deps.Config.ServerPort),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	deps.Log.Info("http server listening", zap.Int("port", deps.Config.ServerPort))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// NewRouter builds the gin router with all middleware and routes.
func NewRouter(deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(metricsMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{deps.Config.CORSOrigin},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", passkeyHeader},
		MaxAge:       12 * time.Hour,
	}))

	registerRoutes(router, deps)
	return router
}
