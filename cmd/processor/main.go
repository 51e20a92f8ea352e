// Package main runs the inbound email processor. It consumes mail events
// published by the provider bridge and threads them into the CRM mailbox.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/white/crm-backend/config"
	"github.com/white/crm-backend/internal/events"
	"github.com/white/crm-backend/internal/handlers"
	"github.com/white/crm-backend/internal/inbound"
	"github.com/white/crm-backend/internal/repositories"
	"github.com/white/crm-backend/internal/services"
	"github.com/white/crm-backend/pkg/kafka"
	"github.com/white/crm-backend/pkg/logger"
	"github.com/white/crm-backend/pkg/mongodb"
)

const serviceName = "crm-processor"

func main() {
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

	if !cfg.Kafka.Enabled() {
		zlog.Fatal("Kafka brokers must be configured for the processor")
	}

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

	producer, err := kafka.NewProducer(cfg.Kafka)
	if err != nil {
		zlog.Fatal("Failed to create Kafka producer", zap.Error(err))
	}
	defer producer.Close()

	consumer, err := kafka.NewConsumer(cfg.Kafka)
	if err != nil {
		zlog.Fatal("Failed to create Kafka consumer", zap.Error(err))
	}
	defer consumer.Close()

	if err := consumer.Subscribe([]string{cfg.Kafka.Topics.EmailInbound}); err != nil {
		zlog.Fatal("Failed to subscribe", zap.String("topic", cfg.Kafka.Topics.EmailInbound), zap.Error(err))
	}

	audit := events.NewAuditPublisher(producer, cfg.Kafka.Topics.Audit, zlog)
	emailService := services.NewEmailService(
		repositories.NewMongoEmailRepository(mongoClient),
		repositories.NewMongoContactRepository(mongoClient),
		nil, producer, cfg.Kafka.Topics.EmailSent, audit,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	health := handlers.NewHealthHandler(serviceName, cfg.Server.Version).AddCheck("mongodb", mongoClient.Ping)
	router := mux.NewRouter()
	router.HandleFunc("/health", health.GetOverallHealth).Methods(http.MethodGet)
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.ProcessorPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Error("Health server failed", zap.Error(err))
		}
	}()

	zlog.Info("Processor started", zap.String("topic", cfg.Kafka.Topics.EmailInbound))
	if err := consumer.Consume(ctx, inbound.NewHandler(emailService)); err != nil {
		zlog.Error("Consumer stopped", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	producer.Flush(5000)
	zlog.Info("Processor stopped")
}
