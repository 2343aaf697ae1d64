package main

import (
	"context"
	"log"
	"time"

	"rfp-intake-platform/internal/config"
	"rfp-intake-platform/internal/logger"
	"rfp-intake-platform/internal/queue"
	"rfp-intake-platform/services"

	"github.com/hibiken/asynq"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

	db := mongoClient.Database(cfg.DBName)
	rfpStore := services.NewRfpStore(db.Collection("rfps"))
	settingsService := services.NewSettingsService(db.Collection("app_settings"))

	extractionClient := services.NewExtractionClient(cfg, nil)
	extractor := services.NewDocumentExtractor(cfg, extractionClient)

	// The worker never enqueues or serves uploads; it only re-runs
	// extraction for stored files, so no enqueuer or metrics are wired.
	intake := services.NewIntakeService(cfg, settingsService, rfpStore, extractor, nil, nil)

	server := asynq.NewServer(
		queue.RedisConnOpt(cfg),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(rfpStore, intake)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskProcessRFP, processor.ProcessRFP)

	logger.Info("worker starting", "concurrency", 10, "redis", cfg.RedisURL)

	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
