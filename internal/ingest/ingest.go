// Package ingest runs the pipeline every new reading flows through:
// store append, stats update, control evaluation, event stream publish.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qzhari/envmon-server/internal/control"
	"github.com/qzhari/envmon-server/internal/device"
	"github.com/qzhari/envmon-server/internal/protocol"
	"github.com/qzhari/envmon-server/internal/stats"
	"github.com/qzhari/envmon-server/internal/store"
)

// Publisher publishes ingested readings to the archive stream.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Ingestor stamps, persists and evaluates incoming readings.
type Ingestor struct {
	store     store.Store
	stats     *stats.Aggregator
	evaluator *control.Evaluator
	state     *device.Manager
	readings  Publisher // may be nil
	loc       *time.Location
}

// New creates an Ingestor. Readings are stamped in the given location.
func New(s store.Store, agg *stats.Aggregator, ev *control.Evaluator, state *device.Manager, readings Publisher, loc *time.Location) *Ingestor {
	if loc == nil {
		loc = time.Local
	}
	return &Ingestor{
		store:     s,
		stats:     agg,
		evaluator: ev,
		state:     state,
		readings:  readings,
		loc:       loc,
	}
}

// IngestValues stamps the current date and time onto the measured values and
// runs the pipeline. This is the path for the HTTP ingestion endpoint.
func (i *Ingestor) IngestValues(ctx context.Context, temp, humi, co2 float64) (store.Reading, error) {
	now := time.Now().In(i.loc)
	r := store.Reading{
		Date:        now.Format(store.DateLayout),
		Time:        now.Format(store.TimeLayout),
		Temperature: temp,
		Humidity:    humi,
		CO2:         co2,
	}
	return r, i.Ingest(ctx, r)
}

// IngestReport handles a full device report from the MQTT bridge: identity
// fields refresh the config record, then the measurement runs the pipeline.
// Thresholds and relay state in the report are ignored; the server is
// authoritative for both.
func (i *Ingestor) IngestReport(ctx context.Context, report *protocol.DeviceReport) (store.Reading, error) {
	upd := device.Update{
		SSID:     &report.SSID,
		Password: &report.Password,
		DeviceID: &report.DeviceID,
	}
	if _, err := i.state.Apply(ctx, upd); err != nil {
		return store.Reading{}, err
	}
	return i.IngestValues(ctx, report.Temperature, report.Humidity, report.CO2)
}

// Ingest appends a stamped reading, folds it into the day stats, and runs
// the control evaluator. The append is the gate: a reading that fails
// validation or storage touches nothing else.
func (i *Ingestor) Ingest(ctx context.Context, r store.Reading) error {
	if err := i.store.Append(ctx, r); err != nil {
		return err
	}
	i.stats.Record(r)

	if _, err := i.evaluator.OnReading(ctx, r); err != nil {
		// The reading is already persisted; evaluation state errors are
		// surfaced but must not look like a failed append to the device.
		fmt.Printf("Control evaluation failed: %v\n", err)
	}

	i.publish(ctx, r)
	return nil
}

// publish archives the reading on the event stream, best effort.
func (i *Ingestor) publish(ctx context.Context, r store.Reading) {
	if i.readings == nil {
		return
	}
	msg := &protocol.ReadingMessage{
		MessageID:  uuid.NewString(),
		ReceivedAt: time.Now(),
		Reading:    r,
	}
	data, err := protocol.EncodeReadingMessage(msg)
	if err == nil {
		err = i.readings.Publish(ctx, r.Date, data)
	}
	if err != nil {
		fmt.Printf("Failed to publish reading message: %v\n", err)
	}
}
