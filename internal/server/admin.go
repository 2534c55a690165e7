package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/apex-sandbox/sandboxd/internal/config"
	"github.com/apex-sandbox/sandboxd/internal/metrics"
)

// AdminServer exposes operational endpoints (health, Prometheus metrics)
// separately from the raw TCP sandbox listener.
type AdminServer struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// NewAdminServer builds the admin HTTP server bound to cfg.AdminAddr.
func NewAdminServer(cfg *config.Config, logger *zap.Logger) *AdminServer {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", metrics.PrometheusHandler())

	return &AdminServer{
		httpServer: &http.Server{
			Addr:              cfg.AdminAddr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Run starts serving and blocks until ctx is canceled or ListenAndServe
// fails for a reason other than a graceful shutdown.
func (a *AdminServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("admin HTTP server started", zap.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
