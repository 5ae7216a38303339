package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/qzhari/envmon-server/internal/notification"
	"github.com/qzhari/envmon-server/internal/protocol"
	"github.com/qzhari/envmon-server/internal/queue"
	"github.com/qzhari/envmon-server/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	fmt.Println("Starting Notification Service...")

	notifier := notification.NewEmailNotifier(&cfg.SMTP)

	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicRelay, "notification-group")
	defer consumer.Close()
	fmt.Println("Kafka consumer initialized")

	fmt.Println("\n✓ Notification Service is running")
	fmt.Println("✓ Press Ctrl+C to stop")

	ctx := context.Background()
	go func() {
		for {
			msg, err := consumer.Consume(ctx)
			if err != nil {
				log.Printf("Failed to consume message: %v\n", err)
				continue
			}

			event, err := protocol.DecodeRelayEvent(msg.Value)
			if err != nil {
				log.Printf("Failed to decode relay event: %v\n", err)
				consumer.Commit(ctx, msg)
				continue
			}

			if err := notifier.SendRelayNotification(event); err != nil {
				log.Printf("Failed to send notification: %v\n", err)
			}

			if err := consumer.Commit(ctx, msg); err != nil {
				log.Printf("Failed to commit offset: %v\n", err)
			}
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down gracefully...")
}
