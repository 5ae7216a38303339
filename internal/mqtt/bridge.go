package mqtt

import (
	"context"
	"fmt"

	"github.com/qzhari/envmon-server/internal/ingest"
	"github.com/qzhari/envmon-server/internal/protocol"
)

// Bridge subscribes to the device report topic and feeds reports into the
// ingest pipeline.
type Bridge struct {
	client      Client
	ingestor    *ingest.Ingestor
	reportTopic string
}

// NewBridge creates a bridge over a connected client.
func NewBridge(client Client, ingestor *ingest.Ingestor, reportTopic string) *Bridge {
	return &Bridge{
		client:      client,
		ingestor:    ingestor,
		reportTopic: reportTopic,
	}
}

// Start subscribes to the report topic. Malformed or rejected reports are
// logged and dropped; the subscription stays up.
func (b *Bridge) Start(ctx context.Context) error {
	return b.client.Subscribe(b.reportTopic, func(msg Message) {
		report, err := protocol.ParseDeviceReport(msg.Payload)
		if err != nil {
			fmt.Printf("Dropping malformed device report: %v\n", err)
			return
		}

		reading, err := b.ingestor.IngestReport(ctx, report)
		if err != nil {
			fmt.Printf("Failed to ingest device report: %v\n", err)
			return
		}
		fmt.Printf("Ingested reading from %s: %s %s temp=%.2f humi=%.2f co2=%.2f\n",
			report.DeviceID, reading.Date, reading.Time,
			reading.Temperature, reading.Humidity, reading.CO2)
	})
}
