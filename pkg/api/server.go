package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/cuemby/connect-watcher/pkg/cluster"
	"github.com/cuemby/connect-watcher/pkg/events"
	"github.com/cuemby/connect-watcher/pkg/log"
	"github.com/cuemby/connect-watcher/pkg/metrics"
	"github.com/cuemby/connect-watcher/pkg/types"
)

// Source exposes the watcher to the API
type Source interface {
	Clusters() []*cluster.Handle
	Cluster(name string) (*cluster.Handle, bool)
	State() string
	LastSnapshot() (types.WatcherSnapshot, bool)
}

// EventSource returns recent events, newest first
type EventSource interface {
	Recent(limit int) []*events.Event
}

// Options configures the HTTP surface
type Options struct {
	// Address is the listen address used by Start
	Address string

	// AllowOrigins enables CORS for the listed origins
	AllowOrigins []string

	// Metrics mounts the Prometheus handler on /metrics
	Metrics bool
}

// Server is the read-only operator HTTP surface
type Server struct {
	source Source
	events EventSource
	engine *gin.Engine
	srv    *http.Server
	logger zerolog.Logger
}

// NewServer creates the server and registers its routes
func NewServer(source Source, recorder EventSource, opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		source: source,
		events: recorder,
		engine: gin.New(),
		logger: log.WithComponent("api"),
	}

	s.srv = &http.Server{
		Addr:         opts.Address,
		Handler:      s.engine,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.engine.Use(gin.Recovery())
	s.engine.Use(RequestMetrics(s.logger))
	if len(opts.AllowOrigins) > 0 {
		s.engine.Use(cors.New(cors.Config{
			AllowOrigins:  opts.AllowOrigins,
			AllowMethods:  []string{http.MethodGet, http.MethodHead, http.MethodOptions},
			AllowHeaders:  []string{"Origin", "Accept", "Content-Type"},
			ExposeHeaders: []string{"Content-Length"},
			MaxAge:        12 * time.Hour,
		}))
	}
	s.engine.Use(ReadOnly())

	s.engine.GET("/health", gin.WrapF(metrics.HealthHandler()))
	s.engine.GET("/ready", gin.WrapF(metrics.ReadyHandler()))
	s.engine.GET("/live", gin.WrapF(metrics.LivenessHandler()))
	if opts.Metrics {
		s.engine.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	v1 := s.engine.Group("/api/v1")
	{
		v1.GET("/status", s.getStatus)
		v1.GET("/clusters", s.listClusters)
		v1.GET("/clusters/:name", s.getCluster)
		v1.GET("/events", s.listEvents)
	}

	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Shutdown is called. Start after Shutdown returns nil
// without listening.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.srv.Addr).Msg("Operator API listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
