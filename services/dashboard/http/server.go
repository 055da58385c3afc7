package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/02loveslollipop/Shizuku-air-quality/services/dashboard/config"
	"github.com/02loveslollipop/Shizuku-air-quality/services/dataset"
)

// DatasetLoader is the memoised dataset source behind every handler.
type DatasetLoader interface {
	Load(ctx context.Context) (*dataset.Dataset, error)
	Invalidate()
	Loaded() bool
}

// Server bundles router and dependencies for the dashboard.
type Server struct {
	cfg    config.Config
	loader DatasetLoader
	logger *slog.Logger
	engine *gin.Engine
	charts *chartCache
}

// New constructs a server with routes and middleware.
func New(cfg config.Config, loader DatasetLoader, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(logger))
	engine.Use(corsMiddleware())
	engine.SetHTMLTemplate(template.Must(template.New(indexTemplateName).Parse(indexTemplate)))

	server := &Server{
		cfg:    cfg,
		loader: loader,
		logger: logger,
		engine: engine,
		charts: newChartCache(),
	}
	server.registerRoutes()
	server.registerV1Routes()
	return server
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.ListenAddr(),
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":         "ok",
			"dataset_loaded": s.loader.Loaded(),
		})
	})

	s.engine.GET("/", s.handleIndex)
	s.engine.GET("/export.xlsx", s.handleExport)

	charts := s.engine.Group("/charts")
	{
		charts.GET("/monthly.png", s.handleMonthlyChart)
		charts.GET("/heatmap.png", s.handleHeatmapChart)
		charts.GET("/scatter.png", s.handleScatterChart)
	}
}

// loadDataset returns the cached dataset or writes a 500 JSON error.
func (s *Server) loadDataset(c *gin.Context) (*dataset.Dataset, bool) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.RequestTimeout)
	defer cancel()

	ds, err := s.loader.Load(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return ds, true
}

// stationParam validates ?station= against the dataset. Empty means all stations.
func stationParam(c *gin.Context, ds *dataset.Dataset) (string, error) {
	station := strings.TrimSpace(c.Query("station"))
	if station != "" && !ds.HasStation(station) {
		return "", fmt.Errorf("unknown station %q", station)
	}
	return station, nil
}

func bearerAuthMiddleware(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if token != expected {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

const requestIDHeader = "X-Request-ID"

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}
		logger.LogAttrs(c.Request.Context(), level, "request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
			slog.String("request_id", requestID),
		)
	}
}
