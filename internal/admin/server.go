package admin

import (
	"context"
	"errors"
	"net/http"
	"time"

	"crypto_bot/internal/catalog"
	"crypto_bot/internal/config"
	"crypto_bot/internal/logger"
	"crypto_bot/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Catalog is the part of catalog.Cache the admin surface needs.
type Catalog interface {
	Ready() bool
	Stats() catalog.Stats
	Assets() []models.Asset
	Refresh(ctx context.Context) error
	LookupIDBySymbol(ctx context.Context, symbol string) (string, error)
}

// Server exposes health and catalog operations over HTTP.
type Server struct {
	cfg       *config.Config
	catalog   Catalog
	onRefresh func([]models.Asset)
	engine    *gin.Engine
	startedAt time.Time
}

// NewServer builds the router. onRefresh (optional) runs after a successful
// refresh requested through the API.
func NewServer(cfg *config.Config, cat Catalog, onRefresh func([]models.Asset)) *Server {
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:       cfg,
		catalog:   cat,
		onRefresh: onRefresh,
		engine:    gin.New(),
		startedAt: time.Now(),
	}
	s.engine.Use(gin.Recovery(), requestLogger())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", s.getHealth)
	s.engine.GET("/catalog", s.getCatalog)
	s.engine.GET("/catalog/symbols/:symbol", s.getSymbol)
	s.engine.POST("/catalog/refresh", s.postRefresh)
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "Admin server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx := logger.WithRequestID(c.Request.Context(), uuid.NewString())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		logger.Debug(ctx, "Admin request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) getHealth(c *gin.Context) {
	ready := s.catalog.Ready()
	status, code := "ok", http.StatusOK
	if !ready {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":        status,
		"catalog_ready": ready,
		"version":       s.cfg.Version,
		"uptime":        time.Since(s.startedAt).Round(time.Second).String(),
	})
}

func (s *Server) getCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ready":      s.catalog.Ready(),
		"stats":      s.catalog.Stats(),
		"price_feed": s.cfg.PriceFeed,
	})
}

func (s *Server) getSymbol(c *gin.Context) {
	symbol := catalog.Normalize(c.Param("symbol"))
	id, err := s.catalog.LookupIDBySymbol(c.Request.Context(), symbol)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown symbol", "symbol": symbol})
	case err != nil:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"symbol": symbol, "id": id})
	}
}

func (s *Server) postRefresh(c *gin.Context) {
	ctx := c.Request.Context()
	if err := s.catalog.Refresh(ctx); err != nil {
		logger.Warn(ctx, "Catalog refresh via admin failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if s.onRefresh != nil {
		s.onRefresh(s.catalog.Assets())
	}
	logger.Info(ctx, "Catalog refreshed via admin")
	c.JSON(http.StatusOK, gin.H{"stats": s.catalog.Stats()})
}
