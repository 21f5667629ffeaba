package main

// @title Droszt API
// @version 1.0.0
// @description Очереди такси на стоянках: check-in, check-out, геофенс зон, heartbeat водителя и заметки по очереди.
// @description
// @description Живая лента очереди доступна по WebSocket на служебном порту: /ws/queues/{queue}.

// @contact.name API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	_ "github.com/droszt-service/docs"
	"github.com/droszt-service/internal/app"
	"github.com/droszt-service/internal/config"
	httpDelivery "github.com/droszt-service/internal/delivery/http"
	"github.com/droszt-service/internal/delivery/http/handler"
	"github.com/droszt-service/internal/delivery/ops"
	"github.com/droszt-service/internal/delivery/ws"
	"github.com/droszt-service/internal/domain/repository"
	"github.com/droszt-service/internal/pkg/logger"
	"github.com/droszt-service/internal/worker"
	"github.com/droszt-service/internal/worker/heartbeat"
	"github.com/droszt-service/internal/worker/location"
	"github.com/droszt-service/internal/worker/notification"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.New(cfg.Log.Level, "droszt-api")
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting Droszt API")
	log.Info("Configuration loaded",
		zap.String("env", cfg.Server.Env),
		zap.String("server_addr", cfg.GetServerAddr()),
		zap.String("ops_addr", cfg.GetOpsAddr()),
		zap.String("local_store", cfg.Storage.LocalDriver),
		zap.String("live_feed", cfg.Tracking.LiveLocationFeed),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer c.Close()

	healthCtx, healthCancel := context.WithTimeout(ctx, 5*time.Second)
	for name, check := range c.HealthChecks() {
		if err := check(healthCtx); err != nil {
			healthCancel()
			log.Fatal("Health check failed", zap.String("dependency", name), zap.Error(err))
		}
	}
	healthCancel()
	log.Info("All connections healthy")

	// при включённом воркере фоновые точки идут через Redis Stream
	var sampleStream repository.StreamRepository
	if cfg.Worker.Enabled {
		sampleStream = c.Streams
	}

	handlers := httpDelivery.Handlers{
		Session: handler.NewSessionHandler(c.Devices, c.SignOut, log),
		Queue:   handler.NewQueueHandler(c.Queue, c.Devices, log),
		Admin:   handler.NewAdminHandler(c.Queue, c.Devices, log),
		Notes:   handler.NewNotesHandler(c.Notes, c.Devices, log),
		Device:  handler.NewDeviceHandler(c.Devices, c.Tracking, c.Heartbeat, c.Positions, sampleStream, c.Clock, log),
	}
	server := httpDelivery.NewServer(cfg, log, handlers, c.Revocations)

	hub := ws.NewHub(c.Queue, log)
	go hub.Run(ctx)
	opsServer := ops.NewServer(cfg.GetOpsAddr(), hub, c.Registry, c.HealthChecks(), log)

	workers := worker.NewManager(log)
	workers.Register(heartbeat.NewWorker(c.Devices, c.Heartbeat, c.SignOut, cfg.Heartbeat.Schedule, log))

	responses := notification.NewResponseWorker(c.Heartbeat, c.Locals, log)
	if consumer := c.ResponseConsumer(responses.Handle); consumer != nil {
		responses.Attach(consumer)
		workers.Register(responses)
	}

	if cfg.Worker.Enabled {
		workers.Register(location.NewSampleWorker(
			c.Streams,
			c.Tracking,
			c.Locals,
			c.Positions,
			cfg.Worker.ConsumerGroup,
			cfg.Worker.MaxRetries,
			log,
		))
	}

	if err := workers.Start(ctx); err != nil {
		log.Fatal("Failed to start workers", zap.Error(err))
	}

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()
	go func() {
		if err := opsServer.Start(); err != nil {
			log.Fatal("Failed to start ops server", zap.Error(err))
		}
	}()

	log.Info("Server started successfully",
		zap.String("address", cfg.GetServerAddr()),
		zap.String("env", cfg.Server.Env),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", zap.Error(err))
	}
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Ops server shutdown error", zap.Error(err))
	}

	cancel()
	if err := workers.Stop(); err != nil {
		log.Error("Error stopping workers", zap.Error(err))
	}

	log.Info("Server stopped successfully")
}
