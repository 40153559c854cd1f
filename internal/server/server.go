package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"hoa-ledger/config"
	"hoa-ledger/internal/handler"
	"hoa-ledger/internal/metrics"
	"hoa-ledger/internal/middleware"
	ledgerredis "hoa-ledger/internal/redis"
	"hoa-ledger/internal/services"
	"hoa-ledger/internal/transport/httpdto"
	"hoa-ledger/internal/websocket"
	"hoa-ledger/pkg/database"
	"hoa-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Polls     *handler.PollHandler
	Votes     *handler.VoteHandler
	Receipts  *handler.ReceiptHandler
	Integrity *handler.IntegrityHandler
	Live      *websocket.Handler
}

// Deps are the shared collaborators the routes need besides the handlers.
// Limiter, Redis and Gatherer may be nil.
type Deps struct {
	Auth     *services.AuthService
	Limiter  *ledgerredis.RateLimiter
	Metrics  *metrics.Ledger
	Gatherer prometheus.Gatherer
	DB       *gorm.DB
	Redis    goredis.UniversalClient
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	switch cfg.App.Mode {
	case ReleaseMode, "production":
		gin.SetMode(gin.ReleaseMode)
	case TestMode:
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}
	if l == nil {
		l = logger.NewNop()
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.App.Port),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) SetupRoutes(handlers *Handlers, deps Deps) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger, deps.Metrics))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := database.HealthCheck(ctx, deps.DB); err != nil {
			c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
			return
		}
		if deps.Redis != nil {
			if err := ledgerredis.Ping(ctx, deps.Redis); err != nil {
				c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
				return
			}
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	if deps.Gatherer != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := s.engine.Group("/v1", middleware.AuthMiddleware(deps.Auth))

	polls := v1.Group("/polls")
	{
		polls.GET("", handlers.Polls.List)
		polls.GET("/:id", handlers.Polls.Get)
		polls.GET("/:id/results", handlers.Polls.Results)
		polls.POST("/:id/votes", middleware.VoteRateLimitMiddleware(deps.Limiter), handlers.Votes.Cast)
		if handlers.Live != nil {
			polls.GET("/:id/live", handlers.Live.Live)
		}
	}

	admin := v1.Group("/polls", middleware.RequireAdmin())
	{
		admin.POST("", handlers.Polls.Create)
		admin.PATCH("/:id", handlers.Polls.Update)
		admin.DELETE("/:id", handlers.Polls.Delete)
		admin.GET("/:id/integrity", handlers.Integrity.Check)
	}

	v1.GET("/receipts/:code", middleware.ReceiptRateLimitMiddleware(deps.Limiter), handlers.Receipts.Verify)
}

// Run serves until ctx is done, then drains in-flight requests within the
// configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Starting the server on port %s...", s.config.App.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Infof("Shutdown signal received, draining for up to %s", s.config.App.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.App.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Errorf("Error in the graceful shutdown of the server: %s", err)
		return err
	}

	s.logger.Infof("Server stopped gracefully")
	return nil
}
