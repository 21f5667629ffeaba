package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/droszt-service/internal/app"
	"github.com/droszt-service/internal/config"
	"github.com/droszt-service/internal/pkg/logger"
	"github.com/droszt-service/internal/worker"
	"github.com/droszt-service/internal/worker/location"
	"github.com/droszt-service/internal/worker/notification"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	if !cfg.Worker.Enabled {
		fmt.Println("Worker is disabled in configuration. Set WORKER_ENABLED=true to enable.")
		os.Exit(0)
	}

	log, err := logger.New(cfg.Log.Level, "droszt-worker")
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting Droszt tracking worker")
	log.Info("Configuration loaded",
		zap.String("consumer_group", cfg.Worker.ConsumerGroup),
		zap.Int("max_retries", cfg.Worker.MaxRetries),
		zap.Bool("rabbitmq", cfg.RabbitMQ.Enabled),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer c.Close()

	workers := worker.NewManager(log)
	// foreground геофенс живёт в процессе API, сюда точки не раздаются
	workers.Register(location.NewSampleWorker(
		c.Streams,
		c.Tracking,
		c.Locals,
		nil,
		cfg.Worker.ConsumerGroup,
		cfg.Worker.MaxRetries,
		log,
	))

	responses := notification.NewResponseWorker(c.Heartbeat, c.Locals, log)
	if consumer := c.ResponseConsumer(responses.Handle); consumer != nil {
		responses.Attach(consumer)
		workers.Register(responses)
	}

	if err := workers.Start(ctx); err != nil {
		log.Fatal("Failed to start workers", zap.Error(err))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Info("Received shutdown signal")

	cancel()
	if err := workers.Stop(); err != nil {
		log.Error("Error stopping workers", zap.Error(err))
	}

	log.Info("Worker shutdown complete")
}
