package protocol

import (
	"strings"
	"testing"
)

func TestParseDeviceReport(t *testing.T) {
	payload := []byte(`{
		"ssid": "lab-wifi",
		"deviceID": "esp32-01",
		"relayState": true,
		"tempThreshold": 30,
		"temp": 24.5,
		"humi": 55.2,
		"concentration": 612
	}`)

	report, err := ParseDeviceReport(payload)
	if err != nil {
		t.Fatalf("ParseDeviceReport failed: %v", err)
	}

	if report.DeviceID != "esp32-01" {
		t.Errorf("Expected device ID esp32-01, got %s", report.DeviceID)
	}
	if report.Temperature != 24.5 || report.Humidity != 55.2 || report.CO2 != 612 {
		t.Errorf("Unexpected values: %v %v %v", report.Temperature, report.Humidity, report.CO2)
	}
	if report.TempThreshold == nil || *report.TempThreshold != 30 {
		t.Errorf("Expected temp threshold 30, got %v", report.TempThreshold)
	}
	if report.HumiThreshold != nil {
		t.Errorf("Expected absent humidity threshold to stay nil, got %v", *report.HumiThreshold)
	}
}

func TestParseDeviceReport_RequiresDeviceID(t *testing.T) {
	_, err := ParseDeviceReport([]byte(`{"temp": 24.5, "humi": 55.2, "concentration": 612}`))
	if err == nil {
		t.Fatal("Expected error for missing deviceID, got nil")
	}
	if !strings.Contains(err.Error(), "deviceID") {
		t.Errorf("Expected deviceID in error, got %v", err)
	}
}

func TestParseDeviceReport_RejectsMalformedJSON(t *testing.T) {
	_, err := ParseDeviceReport([]byte(`{"deviceID": "esp32-01", "temp": `))
	if err == nil {
		t.Fatal("Expected error for malformed JSON, got nil")
	}
}

func TestConfigCommand_OmitsNilFields(t *testing.T) {
	relay := true
	data, err := EncodeConfigCommand(&ConfigCommand{RelayState: &relay})
	if err != nil {
		t.Fatalf("EncodeConfigCommand failed: %v", err)
	}

	s := string(data)
	if !strings.Contains(s, "relayState") {
		t.Errorf("Expected relayState in payload, got %s", s)
	}
	if strings.Contains(s, "tempThreshold") {
		t.Errorf("Nil threshold leaked into payload: %s", s)
	}

	cmd, err := DecodeConfigCommand(data)
	if err != nil {
		t.Fatalf("DecodeConfigCommand failed: %v", err)
	}
	if cmd.RelayState == nil || !*cmd.RelayState {
		t.Error("Expected relayState true after round trip")
	}
	if cmd.TempThreshold != nil {
		t.Errorf("Expected nil threshold after round trip, got %v", *cmd.TempThreshold)
	}
}

func TestDecodeRelayEvent(t *testing.T) {
	event, err := DecodeRelayEvent([]byte(`{
		"event_id": "abc-123",
		"type": "RELAY_ON",
		"relay_state": true,
		"message": "Relay switched ON: temperature 31.00 exceeds threshold 30.00",
		"temperature": 31,
		"humidity": 50,
		"co2": 400,
		"occurred_at": "2024-01-01T08:00:00Z"
	}`))
	if err != nil {
		t.Fatalf("DecodeRelayEvent failed: %v", err)
	}

	if event.Type != RelayTypeOn {
		t.Errorf("Expected type %s, got %s", RelayTypeOn, event.Type)
	}
	if !event.RelayState {
		t.Error("Expected relay_state true")
	}
	if event.Temperature != 31 {
		t.Errorf("Expected temperature 31, got %v", event.Temperature)
	}
}
