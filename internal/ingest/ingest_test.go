package ingest

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/qzhari/envmon-server/internal/control"
	"github.com/qzhari/envmon-server/internal/device"
	"github.com/qzhari/envmon-server/internal/protocol"
	"github.com/qzhari/envmon-server/internal/stats"
	"github.com/qzhari/envmon-server/internal/store"
)

type fakePublisher struct {
	messages []*protocol.ReadingMessage
}

func (f *fakePublisher) Publish(ctx context.Context, key string, value []byte) error {
	msg, err := protocol.DecodeReadingMessage(value)
	if err != nil {
		return err
	}
	f.messages = append(f.messages, msg)
	return nil
}

func floatPtr(v float64) *float64 { return &v }

func newTestIngestor(defaults device.Config) (*Ingestor, *store.Memory, *stats.Aggregator, *device.Manager, *fakePublisher) {
	mem := store.NewMemory()
	agg := stats.NewAggregator()
	state := device.NewManager(device.NopStore{}, defaults)
	ev := control.NewEvaluator(state, nil, nil)
	pub := &fakePublisher{}
	return New(mem, agg, ev, state, pub, time.UTC), mem, agg, state, pub
}

func TestIngestor_IngestValues(t *testing.T) {
	ing, mem, agg, state, pub := newTestIngestor(device.Config{})

	r, err := ing.IngestValues(context.Background(), 24.5, 55.2, 612)
	if err != nil {
		t.Fatalf("IngestValues failed: %v", err)
	}

	if r.Temperature != 24.5 || r.Humidity != 55.2 || r.CO2 != 612 {
		t.Errorf("Unexpected reading values: %+v", r)
	}
	if r.Date == "" || r.Time == "" {
		t.Error("Expected stamped date and time")
	}
	if err := r.Validate(); err != nil {
		t.Errorf("Stamped reading does not validate: %v", err)
	}

	if mem.Count() != 1 {
		t.Errorf("Expected 1 stored reading, got %d", mem.Count())
	}
	if agg.SampleCount(r.Date) != 1 {
		t.Errorf("Expected 1 aggregated sample, got %d", agg.SampleCount(r.Date))
	}

	// Latest values land on the config record
	snap := state.Snapshot()
	if snap.Temperature != 24.5 || snap.Humidity != 55.2 || snap.CO2 != 612 {
		t.Errorf("Latest values not updated: %+v", snap)
	}

	if len(pub.messages) != 1 {
		t.Fatalf("Expected 1 published message, got %d", len(pub.messages))
	}
	if pub.messages[0].Reading != r {
		t.Errorf("Published reading mismatch: %+v", pub.messages[0].Reading)
	}
	if pub.messages[0].MessageID == "" {
		t.Error("Expected a message ID")
	}
}

func TestIngestor_AppendFailureTouchesNothing(t *testing.T) {
	ing, mem, agg, _, pub := newTestIngestor(device.Config{})

	err := ing.Ingest(context.Background(), store.Reading{
		Date: "2024-01-01", Time: "08:00:00",
		Temperature: math.NaN(), Humidity: 50, CO2: 400,
	})
	if err == nil {
		t.Fatal("Expected validation error, got nil")
	}

	if mem.Count() != 0 {
		t.Errorf("Expected no stored readings, got %d", mem.Count())
	}
	if agg.SampleCount("2024-01-01") != 0 {
		t.Errorf("Rejected reading reached the aggregator: %d samples", agg.SampleCount("2024-01-01"))
	}
	if len(pub.messages) != 0 {
		t.Errorf("Rejected reading was published: %d messages", len(pub.messages))
	}
}

func TestIngestor_IngestReport(t *testing.T) {
	ing, mem, _, state, _ := newTestIngestor(device.Config{TempThreshold: floatPtr(30)})

	reportThreshold := 99.0
	report := &protocol.DeviceReport{
		SSID:          "lab-wifi",
		DeviceID:      "esp32-01",
		RelayState:    true,
		TempThreshold: &reportThreshold,
		Temperature:   24.5,
		Humidity:      55.2,
		CO2:           612,
	}

	if _, err := ing.IngestReport(context.Background(), report); err != nil {
		t.Fatalf("IngestReport failed: %v", err)
	}

	if mem.Count() != 1 {
		t.Errorf("Expected 1 stored reading, got %d", mem.Count())
	}

	snap := state.Snapshot()
	if snap.SSID != "lab-wifi" || snap.DeviceID != "esp32-01" {
		t.Errorf("Identity fields not refreshed: %q %q", snap.SSID, snap.DeviceID)
	}

	// The server stays authoritative: the reported threshold and relay
	// state never overwrite the record.
	if snap.TempThreshold == nil || *snap.TempThreshold != 30 {
		t.Errorf("Reported threshold overwrote the record: %v", snap.TempThreshold)
	}
	if snap.RelayState {
		t.Error("Reported relay state overwrote the record")
	}
}

func TestIngestor_NilPublisher(t *testing.T) {
	mem := store.NewMemory()
	agg := stats.NewAggregator()
	state := device.NewManager(device.NopStore{}, device.Config{})
	ev := control.NewEvaluator(state, nil, nil)
	ing := New(mem, agg, ev, state, nil, nil)

	if _, err := ing.IngestValues(context.Background(), 24.5, 55.2, 612); err != nil {
		t.Fatalf("IngestValues failed without publisher: %v", err)
	}
	if mem.Count() != 1 {
		t.Errorf("Expected 1 stored reading, got %d", mem.Count())
	}
}
