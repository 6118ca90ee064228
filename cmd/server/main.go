package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/avolkov/pipewatch/internal/alert"
	"github.com/avolkov/pipewatch/internal/api"
	"github.com/avolkov/pipewatch/internal/cache"
	"github.com/avolkov/pipewatch/internal/database"
	"github.com/avolkov/pipewatch/internal/ingest"
	"github.com/avolkov/pipewatch/internal/queue"
	"github.com/avolkov/pipewatch/internal/ws"
	"github.com/avolkov/pipewatch/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	fmt.Println("Starting Pipewatch Server...")

	// Connect to database
	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	fmt.Println("Connected to database")

	// Run migrations
	if err := db.RunMigrations("migrations"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Connect to Redis; the server runs without the check-alert cache if
	// Redis is unreachable.
	var responseCache *cache.Cache
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		fmt.Printf("Note: Redis unavailable, check-alert caching disabled: %v\n", err)
	} else {
		responseCache = cache.New(redisClient, cfg.Alert.CacheTTL)
		fmt.Println("Connected to Redis")
	}

	// Optional alert topic producer
	var publisher ingest.Publisher
	if cfg.Kafka.Enabled() {
		producer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts)
		defer producer.Close()
		publisher = producer
		fmt.Printf("Alert producer initialized (topic %s)\n", cfg.Kafka.TopicAlerts)
	}

	// Alert fan-out hub
	hub := ws.NewHub()

	// Evaluator and ingestion pipeline
	evaluator := alert.NewEvaluator(cfg.Alert.BatchRatio, cfg.Alert.HistoryRatio)
	pipeline := ingest.NewPipeline(db, evaluator, hub, publisher)

	// Periodic historical sweep
	sweeper := alert.NewSweeper(db, evaluator, hub, cfg.Alert.SweepSpec)
	if err := sweeper.Start(); err != nil {
		log.Fatalf("Failed to start alert sweeper: %v", err)
	}
	defer sweeper.Stop()
	fmt.Printf("Alert sweeper scheduled (%s)\n", cfg.Alert.SweepSpec)

	// HTTP server
	server := api.NewServer(db, pipeline, evaluator, hub, responseCache, &cfg.HTTP)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	fmt.Println("\n✓ Pipewatch Server is running")
	fmt.Printf("✓ HTTP listening on port %d\n", cfg.HTTP.Port)
	fmt.Println("✓ Press Ctrl+C to stop")

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
