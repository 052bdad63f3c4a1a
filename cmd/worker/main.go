package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/bodhini-dev/mediadmin/internal/config"
	"github.com/bodhini-dev/mediadmin/internal/logger"
	"github.com/bodhini-dev/mediadmin/internal/mailer"
	"github.com/bodhini-dev/mediadmin/internal/server"
	"github.com/bodhini-dev/mediadmin/internal/tasks"
	"github.com/bodhini-dev/mediadmin/internal/workers"
)

var version = "dev" // Will be set during build with -ldflags

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.GetLogger()

	log.Info().Str("version", version).Msg("Starting mediad worker")

	// Reuse the server's database and storage initialization
	srv, err := server.New(cfg, log, version)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize server (needed for DB and storage)")
	}
	defer srv.Close()
	db := srv.GetDB()
	store := srv.Storage()

	var (
		asynqClient *asynq.Client
		asynqServer *asynq.Server
	)
	if cfg.Redis.Address != "" {
		asynqClient = asynq.NewClient(asynq.RedisClientOpt{
			Addr: cfg.Redis.Address,
		})
		defer asynqClient.Close()

		asynqServer = asynq.NewServer(
			asynq.RedisClientOpt{
				Addr: cfg.Redis.Address,
			},
			asynq.Config{
				Concurrency: 4,
				Queues: map[string]int{
					tasks.QueueDefault: 3,
					tasks.QueueLow:     1,
				},
				Logger: logger.AsynqLogger{L: log},
			},
		)
	} else {
		log.Warn().Msg("REDIS_ADDRESS not set - only the orphan sweep will run")
	}

	// Orphans are purged through the queue when there is one
	purger := workers.NewPurger(asynqClient, store, log)
	sweeper, err := workers.StartOrphanSweeper(cfg.Worker.OrphanSweepSchedule, db, store, purger, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start orphan sweeper")
	}

	if asynqServer != nil {
		mux := asynq.NewServeMux()
		mux.HandleFunc(tasks.TypePurgeFile, func(ctx context.Context, t *asynq.Task) error {
			return workers.HandlePurgeFile(ctx, t, store, log)
		})
		contactMailer := mailer.New(cfg.Mail, log)
		mux.HandleFunc(tasks.TypeSendContact, func(ctx context.Context, t *asynq.Task) error {
			return workers.HandleSendContact(ctx, t, db, contactMailer, log)
		})

		go func() {
			log.Info().Msg("Starting Asynq worker server...")
			if err := asynqServer.Run(mux); err != nil {
				log.Fatal().Err(err).Msg("Asynq worker server failed")
			}
		}()
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Received shutdown signal, shutting down gracefully...")

	// Wait for a running sweep to finish
	<-sweeper.Stop().Done()

	if asynqServer != nil {
		log.Info().Msg("Stopping Asynq worker - waiting for tasks to finish...")
		asynqServer.Shutdown()
	}

	log.Info().Msg("Worker shutdown complete")
}
