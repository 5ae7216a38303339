// Package protocol defines the wire formats exchanged with the device and
// between services.
package protocol

import (
	"encoding/json"
	"fmt"
	"math"
)

// DeviceReport is the payload the device publishes on the report topic. The
// device echoes its identity and relay state alongside each measurement.
type DeviceReport struct {
	SSID          string   `json:"ssid"`
	Password      string   `json:"password"`
	DeviceID      string   `json:"deviceID"`
	RelayState    bool     `json:"relayState"`
	TempThreshold *float64 `json:"tempThreshold"`
	HumiThreshold *float64 `json:"humiThreshold"`
	CO2Threshold  *float64 `json:"co2Threshold"`
	Temperature   float64  `json:"temp"`
	Humidity      float64  `json:"humi"`
	CO2           float64  `json:"concentration"`
}

// ParseDeviceReport decodes and validates a report payload.
func ParseDeviceReport(data []byte) (*DeviceReport, error) {
	var report DeviceReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("invalid device report: %w", err)
	}
	if err := validateReport(&report); err != nil {
		return nil, err
	}
	return &report, nil
}

func validateReport(report *DeviceReport) error {
	if report.DeviceID == "" {
		return fmt.Errorf("deviceID is required")
	}
	for name, v := range map[string]float64{
		"temp":          report.Temperature,
		"humi":          report.Humidity,
		"concentration": report.CO2,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be a finite number", name)
		}
	}
	return nil
}

// ConfigCommand is the subset of configuration pushed back to the device on
// the command topic. Nil fields are omitted and left unchanged on the device.
type ConfigCommand struct {
	RelayState         *bool    `json:"relayState,omitempty"`
	ManualRelayControl *bool    `json:"manualRelayControl,omitempty"`
	TempThreshold      *float64 `json:"tempThreshold,omitempty"`
	HumiThreshold      *float64 `json:"humiThreshold,omitempty"`
	CO2Threshold       *float64 `json:"co2Threshold,omitempty"`
}

// EncodeConfigCommand encodes a ConfigCommand to JSON
func EncodeConfigCommand(cmd *ConfigCommand) ([]byte, error) {
	return json.Marshal(cmd)
}

// DecodeConfigCommand decodes JSON to ConfigCommand
func DecodeConfigCommand(data []byte) (*ConfigCommand, error) {
	var cmd ConfigCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, err
	}
	return &cmd, nil
}
