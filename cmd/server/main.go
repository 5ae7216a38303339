package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/qzhari/envmon-server/internal/control"
	"github.com/qzhari/envmon-server/internal/database"
	"github.com/qzhari/envmon-server/internal/device"
	"github.com/qzhari/envmon-server/internal/ingest"
	"github.com/qzhari/envmon-server/internal/mqtt"
	"github.com/qzhari/envmon-server/internal/queue"
	"github.com/qzhari/envmon-server/internal/sched"
	"github.com/qzhari/envmon-server/internal/server"
	"github.com/qzhari/envmon-server/internal/stats"
	"github.com/qzhari/envmon-server/internal/store"
	"github.com/qzhari/envmon-server/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	fmt.Println("Starting Environment Monitoring Server...")

	loc, err := time.LoadLocation(cfg.Device.Timezone)
	if err != nil {
		log.Fatalf("Failed to load time zone %s: %v", cfg.Device.Timezone, err)
	}

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

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	fmt.Println("Connected to Redis")

	// Create Kafka topics
	if err := queue.CreateTopic(cfg.Kafka.Brokers, cfg.Kafka.TopicReadings, cfg.Kafka.NumPartitions, 1); err != nil {
		fmt.Printf("Note: Topic creation failed (may already exist): %v\n", err)
	}
	if err := queue.CreateTopic(cfg.Kafka.Brokers, cfg.Kafka.TopicRelay, 1, 1); err != nil {
		fmt.Printf("Note: Topic creation failed (may already exist): %v\n", err)
	}

	readingProducer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicReadings)
	defer readingProducer.Close()
	relayProducer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicRelay)
	defer relayProducer.Close()
	fmt.Println("Kafka producers initialized")

	// Config state, seeded from env defaults and restored from Redis
	state := device.NewManager(device.NewRedisStore(redisClient), device.Config{
		TempThreshold: cfg.Device.TempThreshold,
		HumiThreshold: cfg.Device.HumiThreshold,
		CO2Threshold:  cfg.Device.CO2Threshold,
	})
	if err := state.Init(ctx); err != nil {
		log.Fatalf("Failed to load device config: %v", err)
	}
	fmt.Println("Device config loaded")

	// Reading store and day stats
	readingStore := store.NewPostgres(db)
	aggregator := stats.NewAggregator()
	if err := aggregator.Rebuild(ctx, readingStore); err != nil {
		log.Fatalf("Failed to rebuild day stats: %v", err)
	}
	fmt.Println("Day stats rebuilt from reading store")

	// MQTT transport to the device
	mqttClient := mqtt.NewReal(cfg.MQTT)
	if err := mqttClient.Connect(); err != nil {
		log.Fatalf("Failed to connect to MQTT broker: %v", err)
	}
	defer mqttClient.Disconnect()
	fmt.Println("Connected to MQTT broker")

	commands := mqtt.NewCommandPublisher(mqttClient, cfg.MQTT.TopicCommand)
	evaluator := control.NewEvaluator(state, relayProducer, commands)
	ingestor := ingest.New(readingStore, aggregator, evaluator, state, readingProducer, loc)

	bridge := mqtt.NewBridge(mqttClient, ingestor, cfg.MQTT.TopicReport)
	if err := bridge.Start(ctx); err != nil {
		log.Fatalf("Failed to subscribe to device reports: %v", err)
	}
	fmt.Printf("Subscribed to device reports on %s\n", cfg.MQTT.TopicReport)

	// Daily summary rollup
	scheduler := sched.NewScheduler()
	scheduler.Start()
	defer scheduler.Stop()
	snapshotter := stats.NewSnapshotter(db, aggregator)
	scheduleDailySummary(scheduler, snapshotter, cfg.Device.SummaryTime, loc)

	// HTTP boundary
	httpServer := server.New(cfg.HTTP, readingStore, aggregator, state, evaluator, ingestor)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	fmt.Println("\n✓ Environment Monitoring Server is running")
	fmt.Printf("✓ HTTP API listening on port %d\n", cfg.HTTP.Port)
	fmt.Println("✓ Press Ctrl+C to stop")

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Printf("HTTP shutdown error: %v\n", err)
	}
}

func scheduleDailySummary(s *sched.Scheduler, snap *stats.Snapshotter, timeOfDay string, loc *time.Location) {
	jobID := "daily-summary"

	var scheduleNext func()
	scheduleNext = func() {
		nextRun, err := stats.NextRunTime(timeOfDay, loc)
		if err != nil {
			log.Fatalf("Failed to calculate daily summary run time: %v", err)
		}
		fmt.Printf("Next daily summary scheduled for: %s\n", nextRun.Format("2006-01-02 15:04:05"))

		callback := func() {
			if err := snap.PersistPreviousDay(context.Background(), loc); err != nil {
				log.Printf("Daily summary failed: %v\n", err)
			}
			scheduleNext()
		}

		if err := s.Schedule(jobID, nextRun, callback); err != nil {
			log.Printf("Failed to schedule daily summary: %v\n", err)
		}
	}

	scheduleNext()
}
