package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shipdocs/internal/core/config"
	"shipdocs/internal/core/logger"
	"shipdocs/internal/core/queue"
	"shipdocs/internal/core/server"
	"shipdocs/internal/features/shipments/adapters"
	"shipdocs/internal/features/shipments/handler"
	"shipdocs/internal/features/shipments/processor"
	"shipdocs/internal/features/shipments/service"

	"go.uber.org/zap"
)

// @title Shipdocs API
// @version 1.0
// @description This API manages shipments and processes their documents asynchronously.
// @contact.name API Support
// @license.name MIT
// @host localhost:8080
// @BasePath /
func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Environment, cfg.LogLevel); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	l := logger.Get()
	l.Info("Application starting",
		zap.String("environment", cfg.Environment),
		zap.String("log_level", cfg.LogLevel),
	)

	ctx := context.Background()

	// Initialize storage
	db, err := adapters.OpenPostgres(cfg.Database.DSN)
	if err != nil {
		l.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := adapters.RunMigrations(ctx, db); err != nil {
		l.Fatal("Failed to run migrations", zap.Error(err))
	}
	l.Info("Database migrations applied")

	shipmentStore := adapters.NewPostgresShipmentStore(db)

	objectStore, err := adapters.NewS3ObjectStore(ctx, cfg.S3)
	if err != nil {
		l.Fatal("Failed to init object storage", zap.Error(err))
	}

	// Initialize the message queue backend
	q, err := newQueue(cfg)
	if err != nil {
		l.Fatal("Failed to init message queue", zap.Error(err))
	}
	l.Info("Message queue ready", zap.String("backend", cfg.Queue.Backend))

	// Initialize Shipment Service & Handler
	shipmentSvc := service.NewShipmentService(shipmentStore, objectStore, q, nil)
	shipmentHdl := handler.NewShipmentHandler(shipmentSvc)

	// Start the background document processor
	proc := processor.New(q, objectStore, shipmentStore, cfg.Storage.Container)
	procDone := make(chan struct{})
	go func() {
		defer close(procDone)
		proc.Run(ctx)
	}()

	srv := server.New(cfg)

	// Register Routes
	srv.App.Post("/shipments", shipmentHdl.CreateShipment)
	srv.App.Get("/shipments", shipmentHdl.ListShipments)
	srv.App.Get("/shipments/:id", shipmentHdl.GetShipment)
	srv.App.Post("/shipments/:id/documents", shipmentHdl.UploadDocument)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Run()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		l.Fatal("Server failed to start", zap.Error(err))
	case sig := <-quit:
		l.Info("Shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.App.ShutdownWithContext(shutdownCtx); err != nil {
		l.Error("Server shutdown failed", zap.Error(err))
	}

	// Closing the queue drains buffered messages and stops the processor.
	if err := q.Close(); err != nil {
		l.Error("Queue close failed", zap.Error(err))
	}
	select {
	case <-procDone:
	case <-time.After(10 * time.Second):
		l.Warn("Document processor did not stop in time")
	}

	l.Info("Shutdown complete")
}

func newQueue(cfg *config.AppConfig) (queue.Queue, error) {
	switch cfg.Queue.Backend {
	case "redis":
		return queue.NewRedisQueue(cfg.Queue.RedisURL, cfg.Queue.RedisKey)
	case "kafka":
		return queue.NewKafkaQueue(cfg.Queue.KafkaBroker, cfg.Queue.KafkaTopic, cfg.Queue.KafkaGroupID), nil
	default:
		return queue.NewMemoryQueue(), nil
	}
}
