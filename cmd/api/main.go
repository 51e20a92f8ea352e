// Package main is the entry point for the CRM API.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/white/crm-backend/config"
	"github.com/white/crm-backend/internal/cache"
	"github.com/white/crm-backend/internal/events"
	"github.com/white/crm-backend/internal/handlers"
	"github.com/white/crm-backend/internal/ratelimit"
	"github.com/white/crm-backend/internal/repositories"
	"github.com/white/crm-backend/internal/services"
	"github.com/white/crm-backend/internal/utils"
	"github.com/white/crm-backend/pkg/kafka"
	"github.com/white/crm-backend/pkg/logger"
	"github.com/white/crm-backend/pkg/mongodb"
	"github.com/white/crm-backend/pkg/smtp"
)

const serviceName = "crm-api"

func main() {
	// Load environment variables (ignore error in dev)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.Server.Environment, serviceName)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	mongoClient, err := mongodb.NewClient(context.Background(), mongodb.Config{
		URI:         cfg.MongoDB.URI,
		Database:    cfg.MongoDB.Database,
		AppName:     serviceName,
		MaxPoolSize: cfg.MongoDB.MaxPoolSize,
		MinPoolSize: cfg.MongoDB.MinPoolSize,
		MaxRetries:  cfg.MongoDB.MaxRetries,
		TLSCAFile:   cfg.MongoDB.TLSCAFile,
	})
	if err != nil {
		zlog.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(ctx)
	}()

	indexCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := mongoClient.EnsureIndexes(indexCtx, repositories.Indexes()); err != nil {
		zlog.Fatal("Failed to create indexes", zap.Error(err))
	}
	cancel()

	userRepo := repositories.NewMongoUserRepository(mongoClient)
	sessionRepo := repositories.NewMongoSessionRepository(mongoClient)
	activityRepo := repositories.NewMongoActivityRepository(mongoClient)
	contactRepo := repositories.NewMongoContactRepository(mongoClient)
	dealRepo := repositories.NewMongoDealRepository(mongoClient)
	emailRepo := repositories.NewMongoEmailRepository(mongoClient)
	socialRepo := repositories.NewMongoSocialRepository(mongoClient)

	health := handlers.NewHealthHandler(serviceName, cfg.Server.Version).
		AddCheck("mongodb", mongoClient.Ping)

	// Redis backs the stats cache and shares login counters between instances.
	// Without it stats are computed on every request and counters stay in memory.
	loginWindow := cfg.RateLimit.Window()
	var statsCache services.StatsCache
	var limiter ratelimit.Limiter = ratelimit.NewMemoryLimiter(cfg.RateLimit.LoginAttempts, loginWindow)
	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		statsCache = cache.NewStatsCache(rdb, cfg.Redis.TTL())
		limiter = ratelimit.NewRedisLimiter(rdb, cfg.RateLimit.LoginAttempts, loginWindow)
		health.AddCheck("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		zlog.Info("Redis connected", zap.String("addr", cfg.Redis.Addr))
	} else {
		zlog.Warn("Redis not configured, stats cache disabled")
	}

	var producer events.Publisher
	if cfg.Kafka.Enabled() {
		p, err := kafka.NewProducer(cfg.Kafka)
		if err != nil {
			zlog.Fatal("Failed to create Kafka producer", zap.Error(err))
		}
		defer p.Close()
		producer = p
	}
	audit := events.NewAuditPublisher(producer, cfg.Kafka.Topics.Audit, zlog)

	var mailer services.Mailer
	if cfg.SMTP.Enabled() {
		mailer = smtp.NewSMTPClient(cfg.SMTP)
	} else {
		zlog.Warn("SMTP not configured, outbound mail stays queued")
	}

	jwtService, err := utils.NewJWTService(cfg.JWT)
	if err != nil {
		zlog.Fatal("Failed to initialize JWT service", zap.Error(err))
	}

	authService := services.NewAuthService(userRepo, sessionRepo, jwtService, limiter)
	activityService := services.NewActivityService(activityRepo, statsCache, audit)
	contactService := services.NewContactService(contactRepo, audit)
	dealService := services.NewDealService(dealRepo, audit)
	emailService := services.NewEmailService(emailRepo, contactRepo, mailer, producer, cfg.Kafka.Topics.EmailSent, audit)
	socialService := services.NewSocialService(socialRepo, audit)
	userService := services.NewUserService(userRepo, sessionRepo, audit)
	dashboardService := services.NewDashboardService(contactRepo, dealService, activityService, emailRepo)

	swaggerURL := ""
	if cfg.Server.IsDevelopment() {
		swaggerURL = "http://localhost:" + cfg.Server.Port + "/swagger/doc.json"
	}

	router := handlers.NewRouter(handlers.Router{
		Auth:           handlers.NewAuthHandler(authService, audit),
		Activities:     handlers.NewActivityHandler(activityService),
		Contacts:       handlers.NewContactHandler(contactService),
		Deals:          handlers.NewDealHandler(dealService),
		Email:          handlers.NewEmailHandler(emailService),
		Social:         handlers.NewSocialHandler(socialService),
		Team:           handlers.NewTeamHandler(userService, dashboardService),
		Health:         health,
		Tokens:         jwtService,
		KeySet:         jwtService.KeySet,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		SwaggerURL:     swaggerURL,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zlog.Info("Server running", zap.String("addr", srv.Addr), zap.String("environment", cfg.Server.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zlog.Error("Server forced to shutdown", zap.Error(err))
	}

	zlog.Info("Server stopped")
}
