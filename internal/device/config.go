// Package device owns the single mutable device-configuration record.
package device

import (
	"math"

	"github.com/qzhari/envmon-server/internal/store"
)

// Config is the singleton device-configuration record. Thresholds are nil
// when unset; an unset threshold never triggers the relay.
type Config struct {
	SSID               string   `json:"ssid"`
	Password           string   `json:"password"`
	DeviceID           string   `json:"deviceID"`
	RelayState         bool     `json:"relayState"`
	ManualRelayControl bool     `json:"manualRelayControl"`
	TempThreshold      *float64 `json:"tempThreshold"`
	HumiThreshold      *float64 `json:"humiThreshold"`
	CO2Threshold       *float64 `json:"co2Threshold"`
	Temperature        float64  `json:"temperature"`
	Humidity           float64  `json:"humidity"`
	CO2                float64  `json:"co2"`
	Notification       string   `json:"notification"`
}

// Update is a partial configuration change. Nil fields are left unchanged,
// so a caller only sends the fields it intends to change.
type Update struct {
	SSID               *string  `json:"ssid"`
	Password           *string  `json:"password"`
	DeviceID           *string  `json:"deviceID"`
	RelayState         *bool    `json:"relayState"`
	ManualRelayControl *bool    `json:"manualRelayControl"`
	TempThreshold      *float64 `json:"tempThreshold"`
	HumiThreshold      *float64 `json:"humiThreshold"`
	CO2Threshold       *float64 `json:"co2Threshold"`
}

// HasThresholds reports whether the update changes any threshold.
func (u Update) HasThresholds() bool {
	return u.TempThreshold != nil || u.HumiThreshold != nil || u.CO2Threshold != nil
}

// Validate rejects non-finite threshold values before any state is touched.
func (u Update) Validate() error {
	if u.TempThreshold != nil && !finite(*u.TempThreshold) {
		return &store.ValidationError{Field: "tempThreshold", Reason: "must be a finite number"}
	}
	if u.HumiThreshold != nil && !finite(*u.HumiThreshold) {
		return &store.ValidationError{Field: "humiThreshold", Reason: "must be a finite number"}
	}
	if u.CO2Threshold != nil && !finite(*u.CO2Threshold) {
		return &store.ValidationError{Field: "co2Threshold", Reason: "must be a finite number"}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Merge applies the supplied fields onto the record, last-write-wins per
// field. Callers must hold the record's lock (see Manager.Mutate).
func (c *Config) Merge(u Update) {
	if u.SSID != nil {
		c.SSID = *u.SSID
	}
	if u.Password != nil {
		c.Password = *u.Password
	}
	if u.DeviceID != nil {
		c.DeviceID = *u.DeviceID
	}
	if u.RelayState != nil {
		c.RelayState = *u.RelayState
	}
	if u.ManualRelayControl != nil {
		c.ManualRelayControl = *u.ManualRelayControl
	}
	if u.TempThreshold != nil {
		v := *u.TempThreshold
		c.TempThreshold = &v
	}
	if u.HumiThreshold != nil {
		v := *u.HumiThreshold
		c.HumiThreshold = &v
	}
	if u.CO2Threshold != nil {
		v := *u.CO2Threshold
		c.CO2Threshold = &v
	}
}
