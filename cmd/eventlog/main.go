package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qzhari/envmon-server/internal/database"
	"github.com/qzhari/envmon-server/internal/queue"
	"github.com/qzhari/envmon-server/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	fmt.Println("Starting Relay Event Log Writer...")

	// Connect to database
	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	fmt.Println("Connected to database")

	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicRelay, "eventlog-group")
	defer consumer.Close()

	writer := queue.NewRelayLogWriter(consumer, db, 50, 5*time.Second)
	if err := writer.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start relay log writer: %v", err)
	}
	defer writer.Stop()

	fmt.Println("\n✓ Relay Event Log Writer is running")
	fmt.Println("✓ Press Ctrl+C to stop")

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down gracefully...")
}
