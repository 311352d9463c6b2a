package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes mounts the session API on r.
func RegisterRoutes(r gin.IRouter, h *Handlers) {
	v1 := r.Group("/v1")
	v1.GET("/health", h.HandleHealth)
	v1.GET("/sessions", h.HandleListSessions)
	v1.POST("/sessions", h.HandleCreateSession)
	v1.DELETE("/sessions/:id", h.HandleDeleteSession)
	v1.POST("/sessions/:id/reset", h.HandleReset)
	v1.PUT("/sessions/:id/wm", h.HandleUpdateWM)
	v1.POST("/sessions/:id/tacts", h.HandleProcessTact)
	v1.GET("/sessions/:id/timeline", h.HandleTimeline)
}

// NewRouter builds the full engine: recovery, request metrics, the
// session API and /metrics.
func NewRouter(h *Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), metricsMiddleware())
	RegisterRoutes(r, h)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requestLatency.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// Serve runs the HTTP server on addr until ctx is cancelled, then shuts
// it down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		slog.Info("shutting down", "addr", addr)
		return srv.Shutdown(shutdownCtx)
	}
}
