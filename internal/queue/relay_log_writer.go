package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/qzhari/envmon-server/internal/database"
	"github.com/qzhari/envmon-server/internal/protocol"
	"github.com/segmentio/kafka-go"
)

// RelayLogWriter consumes relay events from Kafka and batch-writes the
// relay_log audit table.
type RelayLogWriter struct {
	consumer      *Consumer
	db            *database.DB
	batchSize     int
	flushInterval time.Duration
	stopCh        chan struct{}
	wg            sync.WaitGroup
}

// NewRelayLogWriter creates a new relay log writer
func NewRelayLogWriter(consumer *Consumer, db *database.DB, batchSize int, flushInterval time.Duration) *RelayLogWriter {
	return &RelayLogWriter{
		consumer:      consumer,
		db:            db,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		stopCh:        make(chan struct{}),
	}
}

// Start begins consuming and writing to the database
func (w *RelayLogWriter) Start(ctx context.Context) error {
	w.wg.Add(1)
	go w.run(ctx)
	return nil
}

// Stop stops the writer gracefully
func (w *RelayLogWriter) Stop() {
	close(w.stopCh)
	w.wg.Wait()
}

func (w *RelayLogWriter) run(ctx context.Context) {
	defer w.wg.Done()

	var batch []kafka.Message
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	msgChan := make(chan kafka.Message, 10)
	go func() {
		for {
			msg, err := w.consumer.Consume(ctx)
			if err != nil {
				fmt.Printf("Consumer error: %v\n", err)
				continue
			}
			msgChan <- msg
		}
	}()

	for {
		select {
		case <-w.stopCh:
			// Flush remaining batch before stopping
			if len(batch) > 0 {
				w.flush(ctx, batch)
			}
			return

		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(ctx, batch)
				batch = nil
			}

		case msg := <-msgChan:
			batch = append(batch, msg)
			if len(batch) >= w.batchSize {
				w.flush(ctx, batch)
				batch = nil
			}
		}
	}
}

func (w *RelayLogWriter) flush(ctx context.Context, batch []kafka.Message) {
	successCount := 0
	for _, msg := range batch {
		if err := w.processMessage(ctx, msg); err != nil {
			fmt.Printf("Failed to process relay event: %v\n", err)
			continue
		}
		successCount++

		// Commit offset after successful processing
		if err := w.consumer.Commit(ctx, msg); err != nil {
			fmt.Printf("Failed to commit offset: %v\n", err)
		}
	}

	fmt.Printf("Flushed %d relay events to database\n", successCount)
}

func (w *RelayLogWriter) processMessage(ctx context.Context, msg kafka.Message) error {
	event, err := protocol.DecodeRelayEvent(msg.Value)
	if err != nil {
		return fmt.Errorf("failed to decode relay event: %w", err)
	}

	row := &database.RelayLogRow{
		EventID:    event.EventID,
		EventType:  event.Type,
		RelayState: event.RelayState,
		Message:    event.Message,
		OccurredAt: event.OccurredAt,
	}
	if err := w.db.InsertRelayLog(ctx, row); err != nil {
		return fmt.Errorf("failed to insert relay log: %w", err)
	}

	return nil
}
