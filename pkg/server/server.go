// Package server exposes the agent's commands, settings, error log, health
// and event stream over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PanicRecorder persists recovered handler panics.
type PanicRecorder interface {
	RecordPanic(ctx context.Context, recovered any, stack []byte, info map[string]any)
}

// Config contains server configuration
type Config struct {
	ListenAddr      string
	Port            int
	Debug           bool
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Dependencies contains everything the routes are served from.
type Dependencies struct {
	Logger   *zap.Logger
	Auth     *Authenticator
	Handlers *Handlers
	Panics   PanicRecorder
	// Metrics and Events are optional.
	Metrics http.Handler
	Events  http.Handler
}

// Server is the command HTTP server
type Server struct {
	mu         sync.RWMutex
	config     Config
	logger     *zap.Logger
	router     *gin.Engine
	httpServer *http.Server
	listener   net.Listener
	running    bool
}

// NewServer creates a new server and registers its routes.
func NewServer(cfg Config, deps Dependencies) *Server {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if deps.Auth == nil {
		deps.Auth = NewAuthenticator(AuthConfig{})
	}

	logger := deps.Logger.Named("server")

	router := gin.New()
	router.Use(Recovery(logger, deps.Panics))
	router.Use(RequestLogger(logger))

	s := &Server{
		config: cfg,
		logger: logger,
		router: router,
	}
	s.setupRoutes(deps)
	return s
}

func (s *Server) setupRoutes(deps Dependencies) {
	h := deps.Handlers

	// Probes and metrics (no auth)
	s.router.GET("/healthz", h.Healthz)
	s.router.GET("/readyz", h.Readyz)
	if deps.Metrics != nil {
		s.router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	v1 := s.router.Group("/api/v1")
	v1.Use(deps.Auth.Middleware())
	{
		v1.POST("/messages", h.PostMessage)
		v1.GET("/status", h.GetStatus)
		v1.GET("/health", h.Health)

		v1.GET("/settings", h.GetSettings)
		v1.PUT("/settings", h.UpdateSettings)

		v1.GET("/errors", h.ListErrors)
		v1.DELETE("/errors", h.ClearErrors)
		v1.GET("/errors/export", h.ExportErrors)

		if deps.Events != nil {
			v1.GET("/events", gin.WrapH(deps.Events))
		}
	}
}

// Name returns the component name
func (s *Server) Name() string {
	return "server"
}

// Start listens and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server already running")
	}

	addr := fmt.Sprintf("%s:%d", s.config.ListenAddr, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	// WriteTimeout stays zero unless configured so the event stream is not cut.
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", zap.Error(err))
		}
	}()

	s.running = true
	s.logger.Info("command server started", zap.String("addr", listener.Addr().String()))
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.running = false
	s.logger.Info("command server stopped")
	return nil
}

// IsRunning returns true if the server is running
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return fmt.Sprintf("%s:%d", s.config.ListenAddr, s.config.Port)
}

// Handler returns the router for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// RequestLogger returns a gin middleware for logging requests
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			logger.Error("request completed", fields...)
		case status >= 400:
			logger.Warn("request completed", fields...)
		default:
			logger.Debug("request completed", fields...)
		}
	}
}

// Recovery turns a handler panic into a 500 and an error log entry.
func Recovery(logger *zap.Logger, panics PanicRecorder) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		logger.Error("handler panic",
			zap.String("path", c.Request.URL.Path),
			zap.Any("panic", recovered))
		if panics != nil {
			panics.RecordPanic(c.Request.Context(), recovered, debug.Stack(), map[string]any{
				"method": c.Request.Method,
				"path":   c.Request.URL.Path,
			})
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	})
}
