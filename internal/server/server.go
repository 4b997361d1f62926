// Package server exposes the read-only HTTP surface: the engine
// snapshot, the trade log, health and prometheus metrics.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yuggg-cyber/ritmex-bot-sub001/internal/engine"
)

// Server wraps the HTTP listener serving the status API.
type Server struct {
	eng  *engine.Engine
	http *http.Server
}

// NewRouter builds the gin router. Split from New so tests can drive the
// handlers without a listener.
func NewRouter(eng *engine.Engine, reg *prometheus.Registry) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	v1.GET("/snapshot", func(c *gin.Context) {
		c.JSON(http.StatusOK, eng.GetSnapshot())
	})
	v1.GET("/tradelog", func(c *gin.Context) {
		c.JSON(http.StatusOK, eng.GetSnapshot().TradeLog)
	})

	if reg != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}
	return r
}

// New creates a server bound to addr.
func New(addr string, eng *engine.Engine, reg *prometheus.Registry) *Server {
	return &Server{
		eng: eng,
		http: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(eng, reg),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start serves until Shutdown. Blocking; run it in a goroutine.
func (s *Server) Start() {
	slog.Info("STATUS_SERVER_LISTENING", slog.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("STATUS_SERVER_FAILED", slog.Any("error", err))
	}
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
