// Package store owns the append-only log of sensor readings.
package store

import (
	"context"
	"math"
	"time"
)

// Date and time-of-day layouts used across the wire and the database.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// Reading is one timestamped sensor sample. Readings are immutable facts:
// they are appended once and never updated or deleted.
type Reading struct {
	Date        string  `json:"date"`
	Time        string  `json:"time"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	CO2         float64 `json:"co2"`
}

// Validate checks that the measured values are finite numbers and that the
// date and time fields are well formed. Duplicates are legal and are not
// checked here.
func (r Reading) Validate() error {
	if !isFinite(r.Temperature) {
		return &ValidationError{Field: "temperature", Reason: "must be a finite number"}
	}
	if !isFinite(r.Humidity) {
		return &ValidationError{Field: "humidity", Reason: "must be a finite number"}
	}
	if !isFinite(r.CO2) {
		return &ValidationError{Field: "co2", Reason: "must be a finite number"}
	}
	if _, err := time.Parse(DateLayout, r.Date); err != nil {
		return &ValidationError{Field: "date", Reason: "expected YYYY-MM-DD"}
	}
	if _, err := time.Parse(TimeLayout, r.Time); err != nil {
		return &ValidationError{Field: "time", Reason: "expected HH:MM:SS"}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Store is the append-only reading log. Append is atomic per reading and
// safe under concurrent ingestion; Query returns readings ordered by
// (date desc, time desc), optionally restricted to a single date
// (empty string means all dates).
type Store interface {
	Append(ctx context.Context, r Reading) error
	Query(ctx context.Context, date string) ([]Reading, error)
}
