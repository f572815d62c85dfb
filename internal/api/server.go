// Package api assembles the HTTP surface: the REST task and action
// routes, the websocket endpoint, health and metrics.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/syncboard/syncboard/internal/services"
	"github.com/syncboard/syncboard/pkg/observability"
)

// Config holds the HTTP server settings.
type Config struct {
	ListenAddress   string        `mapstructure:"listen_address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AuthSecret      string        `mapstructure:"auth_secret"`
}

// Server wires the gin router and owns the http.Server lifecycle.
type Server struct {
	router *gin.Engine
	server *http.Server
	config Config
	logger observability.Logger
}

// Deps carries everything the HTTP surface depends on. Gatherer may be
// nil when metrics exposition is disabled.
type Deps struct {
	Tasks     *services.TaskService
	WSHandler gin.HandlerFunc
	Gatherer  prometheus.Gatherer
	Logger    observability.Logger
}

// NewServer builds the router and registers every route.
func NewServer(cfg Config, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = observability.NewNoopLogger()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(deps.Logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}
	if deps.WSHandler != nil {
		router.GET("/ws", deps.WSHandler)
	}

	authed := router.Group("/api")
	authed.Use(AuthMiddleware(cfg.AuthSecret, deps.Logger))
	NewTaskAPI(deps.Tasks).RegisterRoutes(authed)
	NewActionAPI(deps.Tasks).RegisterRoutes(authed)

	return &Server{
		router: router,
		server: &http.Server{
			Addr:         cfg.ListenAddress,
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		config: cfg,
		logger: deps.Logger.WithPrefix("api"),
	}
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler { return s.router }

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", map[string]interface{}{
		"address": s.config.ListenAddress,
	})
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}
