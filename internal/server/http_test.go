package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/qzhari/envmon-server/internal/control"
	"github.com/qzhari/envmon-server/internal/device"
	"github.com/qzhari/envmon-server/internal/ingest"
	"github.com/qzhari/envmon-server/internal/stats"
	"github.com/qzhari/envmon-server/internal/store"
	"github.com/qzhari/envmon-server/pkg/config"
)

func floatPtr(v float64) *float64 { return &v }

// newTestServer wires a Server over in-memory components with no brokers.
func newTestServer(defaults device.Config) (*Server, *store.Memory) {
	mem := store.NewMemory()
	agg := stats.NewAggregator()
	state := device.NewManager(device.NopStore{}, defaults)
	ev := control.NewEvaluator(state, nil, nil)
	ing := ingest.New(mem, agg, ev, state, nil, time.UTC)

	cfg := config.HTTPConfig{Port: 0, ReadTimeout: time.Second, WriteTimeout: time.Second}
	return New(cfg, mem, agg, state, ev, ing), mem
}

func doRequest(t *testing.T, srv *Server, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_IngestPost(t *testing.T) {
	srv, mem := newTestServer(device.Config{})

	rec := doRequest(t, srv, http.MethodPost, "/readings",
		[]byte(`{"co2": 612, "temp": 24.5, "hum": 55.2}`))

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Status  string        `json:"status"`
		Reading store.Reading `json:"reading"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Status != "created" {
		t.Errorf("Expected status created, got %s", resp.Status)
	}
	if resp.Reading.Temperature != 24.5 || resp.Reading.CO2 != 612 {
		t.Errorf("Unexpected reading values: %+v", resp.Reading)
	}
	if resp.Reading.Date == "" || resp.Reading.Time == "" {
		t.Error("Expected server-stamped date and time")
	}

	if mem.Count() != 1 {
		t.Errorf("Expected 1 stored reading, got %d", mem.Count())
	}
}

func TestServer_IngestLegacyGet(t *testing.T) {
	srv, mem := newTestServer(device.Config{})

	rec := doRequest(t, srv, http.MethodGet, "/readings?co2=612&temp=24.5&hum=55.2", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if mem.Count() != 1 {
		t.Errorf("Expected 1 stored reading, got %d", mem.Count())
	}
}

func TestServer_IngestRejectsBadInput(t *testing.T) {
	srv, mem := newTestServer(device.Config{})

	tests := []struct {
		name   string
		method string
		target string
		body   []byte
	}{
		{"malformed json", http.MethodPost, "/readings", []byte(`{"co2": `)},
		{"missing query params", http.MethodGet, "/readings?temp=24.5", nil},
		{"non-numeric query param", http.MethodGet, "/readings?co2=abc&temp=24.5&hum=55.2", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, tt.method, tt.target, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", rec.Code)
			}
		})
	}

	if mem.Count() != 0 {
		t.Errorf("Expected no stored readings, got %d", mem.Count())
	}
}

func TestServer_Data(t *testing.T) {
	srv, _ := newTestServer(device.Config{})

	for i := 0; i < 2; i++ {
		rec := doRequest(t, srv, http.MethodPost, "/readings",
			[]byte(fmt.Sprintf(`{"co2": %d, "temp": %d, "hum": 50}`, 10*(i+1), 20+10*i)))
		if rec.Code != http.StatusCreated {
			t.Fatalf("Ingest failed: %d", rec.Code)
		}
	}

	rec := doRequest(t, srv, http.MethodGet, "/api/data", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp struct {
		Data         []store.Reading           `json:"data"`
		OverallStats map[string]stats.DayStats `json:"overall_stats"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if len(resp.Data) != 2 {
		t.Fatalf("Expected 2 readings, got %d", len(resp.Data))
	}
	if len(resp.OverallStats) != 1 {
		t.Fatalf("Expected stats for 1 date, got %d", len(resp.OverallStats))
	}

	for _, st := range resp.OverallStats {
		if st.MinTemperature != 20 || st.MaxTemperature != 30 || st.AvgTemperature != 25 {
			t.Errorf("Expected temp min/max/avg 20/30/25, got %v/%v/%v",
				st.MinTemperature, st.MaxTemperature, st.AvgTemperature)
		}
		if st.MinCO2 != 10 || st.MaxCO2 != 20 || st.AvgCO2 != 15 {
			t.Errorf("Expected co2 min/max/avg 10/20/15, got %v/%v/%v",
				st.MinCO2, st.MaxCO2, st.AvgCO2)
		}
	}
}

func TestServer_DataEmpty(t *testing.T) {
	srv, _ := newTestServer(device.Config{})

	rec := doRequest(t, srv, http.MethodGet, "/api/data", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp struct {
		Data         []store.Reading           `json:"data"`
		OverallStats map[string]stats.DayStats `json:"overall_stats"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Data == nil {
		t.Error("Expected empty data array, got null")
	}
	if len(resp.OverallStats) != 0 {
		t.Errorf("Expected no stats, got %d dates", len(resp.OverallStats))
	}
}

func TestServer_CurrentConfigConsumesNotification(t *testing.T) {
	srv, _ := newTestServer(device.Config{TempThreshold: floatPtr(30)})

	// Push the relay over its threshold to arm a notification
	rec := doRequest(t, srv, http.MethodPost, "/readings",
		[]byte(`{"co2": 400, "temp": 31, "hum": 50}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("Ingest failed: %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/currentConfig", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var cfg device.Config
	if err := json.Unmarshal(rec.Body.Bytes(), &cfg); err != nil {
		t.Fatalf("Failed to decode config: %v", err)
	}
	if !cfg.RelayState {
		t.Error("Expected relay ON in config")
	}
	if cfg.Notification == "" {
		t.Fatal("Expected notification on first poll")
	}

	// Second poll: the notification was consumed
	rec = doRequest(t, srv, http.MethodGet, "/api/currentConfig", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &cfg); err != nil {
		t.Fatalf("Failed to decode config: %v", err)
	}
	if cfg.Notification != "" {
		t.Errorf("Expected consumed notification, got %q", cfg.Notification)
	}
	if !cfg.RelayState {
		t.Error("Relay state lost between polls")
	}
}

func TestServer_UpdateConfigPartialMerge(t *testing.T) {
	srv, _ := newTestServer(device.Config{
		TempThreshold: floatPtr(30),
		HumiThreshold: floatPtr(80),
	})

	rec := doRequest(t, srv, http.MethodPost, "/api/updateConfig",
		[]byte(`{"tempThreshold": 25}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var cfg device.Config
	if err := json.Unmarshal(rec.Body.Bytes(), &cfg); err != nil {
		t.Fatalf("Failed to decode config: %v", err)
	}
	if cfg.TempThreshold == nil || *cfg.TempThreshold != 25 {
		t.Errorf("Expected temp threshold 25, got %v", cfg.TempThreshold)
	}
	if cfg.HumiThreshold == nil || *cfg.HumiThreshold != 80 {
		t.Errorf("Expected humidity threshold untouched at 80, got %v", cfg.HumiThreshold)
	}
}

func TestServer_UpdateConfigIgnoresReadOnlyFields(t *testing.T) {
	srv, _ := newTestServer(device.Config{})

	// Arm a latest temperature through ingestion
	doRequest(t, srv, http.MethodPost, "/readings", []byte(`{"co2": 400, "temp": 24, "hum": 50}`))

	// A stale full-config echo must not clobber readings or identity
	rec := doRequest(t, srv, http.MethodPost, "/api/updateConfig",
		[]byte(`{"temperature": 99, "deviceID": "spoofed", "relayState": true}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var cfg device.Config
	if err := json.Unmarshal(rec.Body.Bytes(), &cfg); err != nil {
		t.Fatalf("Failed to decode config: %v", err)
	}
	if cfg.Temperature != 24 {
		t.Errorf("Latest temperature clobbered: %v", cfg.Temperature)
	}
	if cfg.DeviceID == "spoofed" {
		t.Error("Device ID clobbered by update request")
	}
	if !cfg.RelayState || !cfg.ManualRelayControl {
		t.Error("Expected manual relay ON from the toggle")
	}
}

func TestServer_UpdateConfigRejectsBadInput(t *testing.T) {
	srv, _ := newTestServer(device.Config{})

	rec := doRequest(t, srv, http.MethodPost, "/api/updateConfig", []byte(`{"tempThreshold": `))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed JSON, got %d", rec.Code)
	}
}

func TestServer_Health(t *testing.T) {
	srv, _ := newTestServer(device.Config{})

	rec := doRequest(t, srv, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}
