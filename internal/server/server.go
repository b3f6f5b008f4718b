package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"techcart/internal/audit"
	"techcart/internal/config"
	custommiddleware "techcart/internal/middleware"
	"techcart/internal/metrics"
	"techcart/internal/notify"
	"techcart/internal/repository"
	"techcart/internal/service"
	"techcart/internal/storage"
	"techcart/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// HealthChecker reports database health; database.Service satisfies it
type HealthChecker interface {
	Health(ctx context.Context) map[string]string
	Close() error
}

// Dependencies are the collaborators the API is assembled from
type Dependencies struct {
	DB       HealthChecker
	Store    repository.Transactor
	Images   storage.ImageStore
	Metrics  *metrics.Manager
	Audit    audit.Recorder
	Notifier notify.Notifier
	// Redis enables rate limiting of register and login when set
	Redis *redis.Client
}

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	deps   Dependencies
}

func NewServer(cfg *config.Config, logger *zap.Logger, deps Dependencies) *Server {
	router := chi.NewRouter()

	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(deps.Metrics.Middleware)
	router.Use(custommiddleware.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.Server.Env == "development"))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := deps.DB.Health(r.Context())
		status := http.StatusOK
		if health["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		custommiddleware.RespondWithJSON(w, status, health)
	})
	router.Handle("/metrics", deps.Metrics.Handler())

	// the local driver serves uploads itself; minio assets are served by the bucket
	if local, ok := deps.Images.(*storage.LocalStore); ok {
		router.Handle("/storage/*", http.StripPrefix("/storage/", http.FileServer(http.Dir(local.Root()))))
	}

	// Initialize services
	accountService := service.NewAccountService(
		deps.Store,
		cfg.JWT.Secret,
		time.Duration(cfg.JWT.Expiry)*time.Minute,
		deps.Audit,
		logger,
	)
	catalogService := service.NewCatalogService(deps.Store, deps.Images, deps.Audit, logger)
	cartService := service.NewCartService(deps.Store, deps.Images, deps.Audit, logger)
	orderService := service.NewOrderService(deps.Store, deps.Metrics, deps.Notifier, deps.Audit, logger)

	// Initialize handlers
	authHandler := transport.NewAuthHandler(accountService, logger)
	productHandler := transport.NewProductHandler(catalogService, logger)
	cartHandler := transport.NewCartHandler(cartService, logger)
	orderHandler := transport.NewOrderHandler(orderService, logger)

	authMiddleware := custommiddleware.AuthMiddleware(accountService, logger)
	adminMiddleware := custommiddleware.RequireAdmin(logger)

	var limiter func(http.Handler) http.Handler
	if deps.Redis != nil {
		limiter = custommiddleware.RateLimitMiddleware(deps.Redis, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         "techcart:ratelimit:auth",
		}, logger)
	}

	router.Route("/api", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authMiddleware, limiter)
		productHandler.RegisterRoutes(r, authMiddleware, adminMiddleware)
		cartHandler.RegisterRoutes(r, authMiddleware)
		orderHandler.RegisterRoutes(r, authMiddleware, adminMiddleware)
	})

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		deps:   deps,
	}

	return server
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.deps.Redis != nil {
		if err := s.deps.Redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	// Close database connection
	if s.deps.DB != nil {
		if err := s.deps.DB.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
