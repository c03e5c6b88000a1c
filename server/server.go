// Package server exposes the analysis pipeline over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/diarysense/internal/profile"
	"github.com/hrygo/diarysense/metrics"
	"github.com/hrygo/diarysense/nlp/analyzer"
	"github.com/hrygo/diarysense/store"
	"github.com/hrygo/diarysense/store/cache"
)

// Server wires the HTTP layer over the analyzer and its stores.
type Server struct {
	echo     *echo.Echo
	profile  *profile.Profile
	store    *store.Store
	cache    cache.Service
	analyzer *analyzer.Analyzer
	exporter *metrics.Exporter
}

// NewServer builds the HTTP server and registers all routes.
func NewServer(_ context.Context, p *profile.Profile, st *store.Store, cacheSvc cache.Service, a *analyzer.Analyzer, exporter *metrics.Exporter) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:     e,
		profile:  p,
		store:    st,
		cache:    cacheSvc,
		analyzer: a,
		exporter: exporter,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.healthz)

	apiV1 := s.echo.Group("/api/v1")
	apiV1.POST("/analyze", s.analyze)
	apiV1.GET("/stats/:user_id", s.userStats)
	apiV1.DELETE("/cache", s.clearCache)

	if s.exporter != nil && s.profile.MetricsEnabled {
		s.echo.GET("/metrics", echo.WrapHandler(s.exporter.Handler()))
	}
}

// Start begins serving and blocks until the listener stops.
func (s *Server) Start(_ context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.profile.Addr, s.profile.Port)
	slog.Info("http server listening", "addr", addr)
	return s.echo.Start(addr)
}

// Shutdown drains the server and closes the stores.
func (s *Server) Shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown http server", "error", err)
	}
	if err := s.cache.Close(); err != nil {
		slog.Error("failed to close cache", "error", err)
	}
	if err := s.store.Close(); err != nil {
		slog.Error("failed to close store", "error", err)
	}
	slog.Info("server shutdown complete")
}

// Echo exposes the router for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.profile.Version,
	})
}
