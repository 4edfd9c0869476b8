package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/openmassage/booking-api/internal/config"
	"github.com/openmassage/booking-api/internal/handler"
	authHandler "github.com/openmassage/booking-api/internal/handler/auth"
	bookingHandler "github.com/openmassage/booking-api/internal/handler/booking"
	catalogHandler "github.com/openmassage/booking-api/internal/handler/catalog"
	userHandler "github.com/openmassage/booking-api/internal/handler/user"
	"github.com/openmassage/booking-api/internal/middleware"
	"github.com/openmassage/booking-api/internal/notifier"
	"github.com/openmassage/booking-api/internal/repository/postgres"
	"github.com/openmassage/booking-api/internal/router"
	authService "github.com/openmassage/booking-api/internal/service/auth"
	bookingService "github.com/openmassage/booking-api/internal/service/booking"
	catalogService "github.com/openmassage/booking-api/internal/service/catalog"
	userService "github.com/openmassage/booking-api/internal/service/user"
	"github.com/openmassage/booking-api/pkg/auth"
	"github.com/openmassage/booking-api/pkg/logger"
	redisbroker "github.com/openmassage/booking-api/pkg/messaging/redis"
	"github.com/openmassage/booking-api/pkg/metrics"
	"github.com/openmassage/booking-api/pkg/security"
	"github.com/openmassage/booking-api/pkg/worker"
)

func main() {
	log := logger.NewLogger(nil)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err, "failed to load configuration")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	m := metrics.NewMetrics("booking_api")

	userRepo := postgres.NewUserRepository(db)
	serviceRepo := postgres.NewServiceRepository(db)
	bookingRepo := postgres.NewBookingRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	ownerCache := cache.New(cfg.Cache.ServiceOwnerTTL, cfg.Cache.CleanupInterval)

	hasher := security.NewBcryptHasher(security.DefaultBcryptCost)
	jwtSvc := auth.NewJWTService(auth.Config{
		Secret:        cfg.JWT.Secret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		Expiry:        time.Duration(cfg.JWT.ExpiryHours) * time.Hour,
		RefreshExpiry: time.Duration(cfg.JWT.RefreshExpiryHours) * time.Hour,
	})

	userSvc := userService.NewService(userRepo, hasher)
	authSvc := authService.NewService(userRepo, jwtSvc, hasher)
	catalogSvc := catalogService.NewService(serviceRepo, userRepo, ownerCache)
	bookingSvc := bookingService.NewService(bookingRepo, serviceRepo, userRepo, ownerCache, m)

	broker, err := redisbroker.NewRedisBroker(redisbroker.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, log.Zerolog())
	if err != nil {
		log.Fatal(err, "failed to connect to Redis")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	events := notifier.New(broker, log, m)
	if err := events.Start(ctx); err != nil {
		log.Fatal(err, "failed to start booking event feed")
	}

	outboxProcessor := worker.NewOutboxProcessor(outboxRepo, broker, worker.OutboxProcessorConfig{
		BatchSize:     cfg.Outbox.BatchSize,
		PollInterval:  cfg.Outbox.PollInterval,
		RetryAttempts: cfg.Outbox.RetryAttempts,
		RetryDelay:    cfg.Outbox.RetryDelay,
	}, log, m)
	go outboxProcessor.Start(ctx)

	authMiddleware := middleware.NewAuthMiddleware(authSvc)

	r := router.NewRouter(
		authMiddleware,
		authHandler.NewHandler(authSvc, userSvc),
		userHandler.NewHandler(userSvc),
		catalogHandler.NewHandler(catalogSvc),
		bookingHandler.NewHandler(bookingSvc, catalogSvc, events),
		handler.NewHealthHandler(db),
		router.Config{
			RateLimit:  rate.Limit(cfg.Server.RateLimitRPS),
			RateBurst:  cfg.Server.RateLimitBurst,
			Timeout:    30 * time.Second,
			CORSConfig: middleware.DefaultCORSConfig(),
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("Starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err, "failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "server forced to shutdown")
		os.Exit(1)
	}

	log.Info("Server exited")
}
