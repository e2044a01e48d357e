// Package admin serves a small HTTP status API next to a peer session.
package admin

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/danmuck/btcwire/internal/config"
	"github.com/danmuck/btcwire/internal/observability"
	"github.com/danmuck/btcwire/internal/peer"
)

const shutdownTimeout = 5 * time.Second

// StatusFunc reports the current session. ok is false before a session exists.
type StatusFunc func() (snap peer.Snapshot, ok bool)

type Server struct {
	ID   string
	Addr string

	started time.Time
	router  *gin.Engine
	status  StatusFunc
	log     zerolog.Logger
}

// New builds the router. Nothing listens until Serve.
func New(id, addr string, corsOrigins []string, status StatusFunc, logger zerolog.Logger) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.Instrument(id, logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	if status == nil {
		status = func() (peer.Snapshot, bool) { return peer.Snapshot{}, false }
	}
	s := &Server{
		ID:      id,
		Addr:    addr,
		started: time.Now(),
		router:  r,
		status:  status,
		log:     logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.started).String(),
			"service": s.ID,
			"version": config.Version,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/ready", func(c *gin.Context) {
		snap, ok := s.status()
		ready := ok && snap.State == peer.StateEstablished.String()
		code := http.StatusOK
		if !ready {
			code = http.StatusServiceUnavailable
		}
		body := gin.H{
			"ready":   ready,
			"service": s.ID,
		}
		if ok {
			body["state"] = snap.State
		}
		c.JSON(code, body)
	})

	s.router.GET("/peer", func(c *gin.Context) {
		snap, ok := s.status()
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no peer session"})
			return
		}
		c.JSON(http.StatusOK, snap)
	})
}

// Serve listens on Addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.Addr).Msg("admin listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
