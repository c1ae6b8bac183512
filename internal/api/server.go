package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/roach88/muezzin/internal/control"
	"github.com/roach88/muezzin/internal/fault"
	"github.com/roach88/muezzin/internal/playback"
)

const (
	dateLayout      = "2006-01-02"
	shutdownTimeout = 5 * time.Second
)

// Server is the HTTP control surface.
type Server struct {
	ctrl    control.Controller
	metrics http.Handler
	loc     *time.Location
	router  *gin.Engine
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics mounts h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithLocation sets the zone used to interpret ?date= on /times.
func WithLocation(loc *time.Location) Option {
	return func(s *Server) { s.loc = loc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a Server over ctrl.
func New(ctrl control.Controller, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		ctrl:   ctrl,
		loc:    time.Local,
		router: gin.New(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "api")

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) setupMiddleware() {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type"}

	s.router.Use(gin.Recovery(), s.requestLogger(), cors.New(corsConfig))
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "muezzin"})
	})
	s.router.GET("/status", s.status)
	s.router.GET("/times", s.times)
	s.router.POST("/reschedule", s.action(control.ActionReschedule))

	pb := s.router.Group("/playback")
	{
		pb.POST("/play", s.play)
		pb.POST("/pause", s.action(control.ActionPause))
		pb.POST("/resume", s.action(control.ActionResume))
		pb.POST("/stop", s.action(control.ActionStop))
	}

	focus := s.router.Group("/focus")
	{
		focus.POST("/interrupt", s.interrupt)
		focus.POST("/restore", s.action(control.ActionRestore))
	}

	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics))
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// errorStatus maps a controller error to an HTTP status.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, control.ErrInvalidCommand):
		return http.StatusBadRequest
	case errors.Is(err, playback.ErrNoSession):
		return http.StatusConflict
	case fault.IsConfigurationMissing(err):
		return http.StatusPreconditionFailed
	case fault.IsResourceUnavailable(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := errorStatus(err)
	body := gin.H{"error": err.Error()}
	if code := fault.CodeOf(err); code != "" {
		body["code"] = string(code)
	}
	c.AbortWithStatusJSON(status, body)
}
