package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"power-atlas/config"
	"power-atlas/web/handlers"
	"power-atlas/web/middleware"
)

const shutdownTimeout = 10 * time.Second

// Services are the backends behind the REST API. Nil members turn the
// matching endpoints into 503 responses.
type Services struct {
	Graph   handlers.GraphService
	Answers handlers.AnswerService
}

type Server struct {
	router      *gin.Engine
	services    Services
	rateLimiter *middleware.ClientRateLimiter
	logger      *zap.Logger
	config      *config.Config
}

func NewServer(services Services, logger *zap.Logger, cfg *config.Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(func(c *gin.Context) {
		c.Set("logger", logger)
		c.Next()
	})

	server := &Server{
		router:   router,
		services: services,
		rateLimiter: middleware.NewClientRateLimiter(middleware.RateLimiterConfig{
			QueriesPerMinute: cfg.RateLimitQueriesPerMin,
			BurstSize:        cfg.RateLimitBurstSize,
		}, logger),
		logger: logger,
		config: cfg,
	}

	server.setupRoutes()
	return server
}

// Handler returns the router wrapped in the CORS policy.
func (s *Server) Handler() http.Handler {
	return middleware.CORS(s.config.FrontendOrigin)(s.router)
}

func (s *Server) setupRoutes() {
	graphHandler := handlers.NewGraphHandler(s.services.Graph, s.logger)
	retrieveHandler := handlers.NewRetrieveHandler(s.services.Answers, s.config.TopK, s.logger)
	limited := middleware.RateLimitMiddleware(s.rateLimiter)

	s.router.GET("/", handlers.Root)
	s.router.GET("/health", handlers.Health)
	s.router.POST("/cypher", limited, graphHandler.Cypher)
	s.router.POST("/seed", graphHandler.Seed)
	s.router.POST("/retrieve", limited, retrieveHandler.Retrieve)
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.logger.Info("Starting web server", zap.String("address", addr))
	defer s.rateLimiter.Stop()

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Web server failed to start", zap.Error(err))
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	s.logger.Info("Shutting down web server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
